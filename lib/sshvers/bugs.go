package sshvers

import "github.com/mayswind/putty-ng/lib/sshproto"

// BugFlag identifies a single known remote-implementation defect that a
// later protocol layer must work around.
type BugFlag int

const (
	BugChokesOnSSH1Ignore BugFlag = iota
	BugNeedsSSH1PlainPassword
	BugChokesOnRSA
	BugSSH2HMAC
	BugSSH2DeriveKey
	BugSSH2RSAPadding
	BugSSH2PKSessionID
	BugSSH2Rekey
	BugSSH2MaxPkt
	BugChokesOnSSH2Ignore
	BugSSH2OldGex
	BugChokesOnWinadj
	BugSendsLateRequestReply

	numBugFlags
)

var bugConfigKey = [numBugFlags]string{
	BugChokesOnSSH1Ignore:     "sshbug_ignore1",
	BugNeedsSSH1PlainPassword: "sshbug_plainpw1",
	BugChokesOnRSA:            "sshbug_rsa1",
	BugSSH2HMAC:               "sshbug_hmac2",
	BugSSH2DeriveKey:          "sshbug_derivekey2",
	BugSSH2RSAPadding:         "sshbug_rsapad2",
	BugSSH2PKSessionID:        "sshbug_pksessid2",
	BugSSH2Rekey:              "sshbug_rekey2",
	BugSSH2MaxPkt:             "sshbug_maxpkt2",
	BugChokesOnSSH2Ignore:     "sshbug_ignore2",
	BugSSH2OldGex:             "sshbug_oldgex2",
	BugChokesOnWinadj:         "sshbug_winadj",
	BugSendsLateRequestReply: "sshbug_rqr",
}

// ConfigKey returns the config accessor key (spec.md §6) associated with a
// bug flag.
func (b BugFlag) ConfigKey() string {
	if b < 0 || b >= numBugFlags {
		return ""
	}
	return bugConfigKey[b]
}

// AllBugFlags returns every known bug flag, in declaration order, for
// callers (such as metrics collection) that need to enumerate the full set.
func AllBugFlags() []BugFlag {
	flags := make([]BugFlag, numBugFlags)
	for i := range flags {
		flags[i] = BugFlag(i)
	}
	return flags
}

// BugSet is a bitset of triggered BugFlags.
type BugSet uint32

// Has reports whether b is set in s.
func (s BugSet) Has(b BugFlag) bool {
	return s&(1<<uint(b)) != 0
}

func (s BugSet) set(b BugFlag) BugSet {
	return s | (1 << uint(b))
}

// bugRecord is one row of the bug table: a flag, and the AUTO trigger
// predicate applied to the software-version remainder ("imp" in spec.md
// terms). Represented as data, not inline conditionals, per spec.md §9
// ("Bug-table extensibility"), so tests can exercise the table directly.
type bugRecord struct {
	flag  BugFlag
	match func(imp string) bool
}

func exact(values ...string) func(string) bool {
	return func(imp string) bool {
		for _, v := range values {
			if imp == v {
				return true
			}
		}
		return false
	}
}

func anyGlob(patterns ...string) func(string) bool {
	return func(imp string) bool {
		for _, p := range patterns {
			if globMatch(p, imp) {
				return true
			}
		}
		return false
	}
}

func never(string) bool { return false }

var bugTable = []bugRecord{
	{
		flag: BugChokesOnSSH1Ignore,
		match: exact(
			"1.2.18", "1.2.19", "1.2.20", "1.2.21", "1.2.22",
			"Cisco-1.25", "OSU_1.4alpha3", "OSU_1.5alpha4",
		),
	},
	{
		flag:  BugNeedsSSH1PlainPassword,
		match: exact("Cisco-1.25", "OSU_1.4alpha3"),
	},
	{
		flag:  BugChokesOnRSA,
		match: exact("Cisco-1.25"),
	},
	{
		// Bare, unprefixed version patterns, matching imp strings like
		// "2.1.0", "2.0.5", or "2.1 <product>" that some ssh.com-derived
		// SSH-2 implementations report (not limited to "OpenSSH_...").
		flag: BugSSH2HMAC,
		match: func(imp string) bool {
			if globMatch("* VShell", imp) {
				return false
			}
			return anyGlob("2.1.0*", "2.0.*", "2.2.0*", "2.3.0*", "2.1 *")(imp)
		},
	},
	{
		flag: BugSSH2DeriveKey,
		match: func(imp string) bool {
			if globMatch("* VShell", imp) {
				return false
			}
			return anyGlob("2.0.0*", "2.0.10*")(imp)
		},
	},
	{
		flag: BugSSH2RSAPadding,
		match: anyGlob(
			"OpenSSH_2.[5-9]*", "OpenSSH_3.[0-2]*",
			"mod_sftp/0.[0-8]*", "mod_sftp/0.9.[0-8]",
		),
	},
	{
		flag:  BugSSH2PKSessionID,
		match: anyGlob("OpenSSH_2.[0-2]*"),
	},
	{
		flag: BugSSH2Rekey,
		match: anyGlob(
			"DigiSSH_2.0", "OpenSSH_2.[0-4]*", "OpenSSH_2.5.[0-3]*",
			"Sun_SSH_1.0", "Sun_SSH_1.0.1", "WeOnlyDo-*",
		),
	},
	{
		flag:  BugSSH2MaxPkt,
		match: anyGlob("1.36_sshlib GlobalSCAPE", "1.36 sshlib: GlobalScape"),
	},
	{
		flag:  BugSSH2OldGex,
		match: anyGlob("OpenSSH_2.[235]*"),
	},
	{
		flag: BugSendsLateRequestReply,
		match: anyGlob(
			"OpenSSH_[2-5].*", "OpenSSH_6.[0-6]*",
			"dropbear_0.[2-4][0-9]*", "dropbear_0.5[01]*",
		),
	},
	{
		flag:  BugChokesOnSSH2Ignore,
		match: never,
	},
	{
		flag:  BugChokesOnWinadj,
		match: never,
	},
}

// DetectBugs computes the bug bitset for a peer software-version string
// imp, applying any user overrides in conf (spec.md §4.2). The bit is set
// iff the policy is ForceOn, or the policy is Auto and imp matches the
// bug's AUTO trigger.
func DetectBugs(imp string, conf *sshproto.Config) BugSet {
	var bugs BugSet
	for _, rec := range bugTable {
		switch conf.BugOverride(rec.flag.ConfigKey()) {
		case sshproto.ForceOn:
			bugs = bugs.set(rec.flag)
		case sshproto.ForceOff:
			// never set, regardless of AUTO
		default: // Auto
			if rec.match(imp) {
				bugs = bugs.set(rec.flag)
			}
		}
	}
	return bugs
}
