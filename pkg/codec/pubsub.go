package codec

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jocax/qollective-sub002/pkg/envelope"
	"github.com/jocax/qollective-sub002/pkg/qerrors"
)

// ReservedSubjectPrefix is the reserved namespace prefix every Qollective
// subject must carry (spec.md §4.4.3).
const ReservedSubjectPrefix = "qollective."

var subjectSegmentPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Subject is a validated hierarchical pub/sub address (spec.md §9 REDESIGN
// FLAGS: subjects should be a value type with validated construction, not
// a string-composed one).
type Subject struct {
	value string
}

// NewSubject validates and constructs a Subject. No empty segments, no
// trailing dot, reserved prefix enforced.
func NewSubject(s string) (Subject, error) {
	if s == "" {
		return Subject{}, qerrors.Validation("subject must not be empty", nil)
	}
	if strings.HasSuffix(s, ".") {
		return Subject{}, qerrors.Validation("subject must not end with a trailing dot", nil)
	}
	if !strings.HasPrefix(s, ReservedSubjectPrefix) {
		return Subject{}, qerrors.Validation(fmt.Sprintf("subject must start with reserved prefix %q", ReservedSubjectPrefix), nil)
	}
	segments := strings.Split(s, ".")
	for _, seg := range segments {
		if seg == "" {
			return Subject{}, qerrors.Validation("subject must not contain empty segments", nil)
		}
		if !subjectSegmentPattern.MatchString(seg) {
			return Subject{}, qerrors.Validation(fmt.Sprintf("subject segment %q contains invalid characters", seg), nil)
		}
	}
	return Subject{value: s}, nil
}

// MustSubject panics if s is not a valid Subject. Intended for compile-time
// constant subjects defined in qconst.
func MustSubject(s string) Subject {
	sub, err := NewSubject(s)
	if err != nil {
		panic(err)
	}
	return sub
}

func (s Subject) String() string { return s.value }

// QueueGroupName formats the load-balanced worker-pool name for a
// capability (spec.md §6.3): qollective.capability.<name>.<version>.
func QueueGroupName(capability, version string) string {
	return fmt.Sprintf("qollective.capability.%s.%s", capability, version)
}

// AgentDirectSubject formats the unicast subject for a specific agent.
func AgentDirectSubject(agentID string) (Subject, error) {
	return NewSubject(fmt.Sprintf("qollective.a2a.v1.agent.%s.direct", agentID))
}

// EncodePubSub renders an envelope as the pub/sub wire body: JSON-encoded,
// identical to the JSON codec. Subject addressing is carried out-of-band
// by the transport, never inside the body (spec.md §4.2).
func EncodePubSub[T any](env *envelope.Envelope[T]) ([]byte, error) {
	return EncodeJSON(env)
}

// DecodePubSub parses a pub/sub message body into an envelope.
func DecodePubSub[T any](data []byte) (*envelope.Envelope[T], error) {
	return DecodeJSON[T](data)
}
