package captoken

import "fmt"

// Privilege names an action a token may authorize.
type Privilege string

const (
	PublishStream   Privilege = "publish-stream"
	SubscribeStream Privilege = "subscribe-stream"
)

// Numeric codes shared with the media service.
var privilegeCodes = map[Privilege]uint16{
	PublishStream:   0,
	SubscribeStream: 4,
}

func (p Privilege) code() (uint16, bool) {
	c, ok := privilegeCodes[p]
	return c, ok
}

func (p Privilege) Valid() bool {
	_, ok := privilegeCodes[p]
	return ok
}

func privilegeFromCode(c uint16) (Privilege, bool) {
	for p, pc := range privilegeCodes {
		if pc == c {
			return p, true
		}
	}
	return "", false
}

// ParsePrivilege maps a wire name to a Privilege.
func ParsePrivilege(s string) (Privilege, error) {
	p := Privilege(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPrivilege, s)
	}
	return p, nil
}
