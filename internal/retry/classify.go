package retry

import "strings"

// Decision is the retry classification of a failed command.
type Decision int

const (
	// Terminal failures require operator intervention and are never retried.
	Terminal Decision = iota
	// Transient failures are expected to resolve on their own.
	Transient
)

func (d Decision) String() string {
	if d == Transient {
		return "transient"
	}
	return "terminal"
}

// Classifier maps the raw stderr of a failed command to a Decision.
type Classifier func(stderr string) Decision

// lockSignatures are the stderr fragments apt and dpkg emit when another
// process holds the package database lock. Matched case-insensitively.
var lockSignatures = []string{
	"could not get lock",
	"another process is using it",
	"is another process using it",
	"unable to acquire the dpkg frontend lock",
	"unable to lock the administration directory",
	"unable to lock directory",
}

// LockContention classifies package database lock errors as Transient and
// everything else as Terminal.
func LockContention(stderr string) Decision {
	s := strings.ToLower(stderr)
	for _, sig := range lockSignatures {
		if strings.Contains(s, sig) {
			return Transient
		}
	}
	return Terminal
}

// Signatures returns a Classifier matching any of the given fragments,
// case-insensitively, in addition to the lock signatures.
func Signatures(extra ...string) Classifier {
	sigs := make([]string, 0, len(extra))
	for _, s := range extra {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			sigs = append(sigs, s)
		}
	}
	return func(stderr string) Decision {
		if LockContention(stderr) == Transient {
			return Transient
		}
		s := strings.ToLower(stderr)
		for _, sig := range sigs {
			if strings.Contains(s, sig) {
				return Transient
			}
		}
		return Terminal
	}
}
