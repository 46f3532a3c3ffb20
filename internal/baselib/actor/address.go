package actor

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
)

// addressCounter is the only process-wide mutable datum in this package. It
// is incremented atomically so id generation never requires a lock.
var addressCounter uint64

// Address is the stable identity of an actor: a logical id plus the host and
// port of the system that hosts it, plus the chain of ancestor ids from the
// root down to (but excluding) the actor itself. Two addresses are equal iff
// all four fields are equal.
//
// Address is a value type. ParentChain is copied on construction and must
// never be mutated in place by callers; NewAddress and WithParentChain are
// the only supported constructors.
type Address struct {
	// ID is a monotonically unique string derived from host, port, and a
	// process-wide counter.
	ID string

	// Host is the hostname or IP of the system hosting this actor.
	Host string

	// Port is the TCP port of the system hosting this actor.
	Port int

	// ParentChain is the ordered sequence of ancestor ids from root to
	// immediate parent, exclusive of self.
	ParentChain []string
}

// NewAddress allocates a new, process-unique Address for an actor hosted at
// host:port. The parent chain is empty; use WithParentChain to attach one
// when the actor is created under a parent.
func NewAddress(host string, port int) Address {
	n := atomic.AddUint64(&addressCounter, 1)

	return Address{
		ID:   fmt.Sprintf("%s:%d-%d", host, port, n),
		Host: host,
		Port: port,
	}
}

// WithParentChain returns a copy of a with its ParentChain replaced. The
// supplied slice is copied so the caller's backing array can be reused or
// mutated afterward without affecting the returned Address.
func (a Address) WithParentChain(chain []string) Address {
	cp := make([]string, len(chain))
	copy(cp, chain)
	a.ParentChain = cp

	return a
}

// ChildChain returns the parent chain a direct child of a should carry: a's
// own chain with a's id appended.
func (a Address) ChildChain() []string {
	cp := make([]string, len(a.ParentChain)+1)
	copy(cp, a.ParentChain)
	cp[len(a.ParentChain)] = a.ID

	return cp
}

// Equal reports whether a and other refer to the same actor identity.
func (a Address) Equal(other Address) bool {
	if a.ID != other.ID || a.Host != other.Host || a.Port != other.Port {
		return false
	}
	if len(a.ParentChain) != len(other.ParentChain) {
		return false
	}
	for i, id := range a.ParentChain {
		if other.ParentChain[i] != id {
			return false
		}
	}

	return true
}

// SameSystem reports whether a and other are hosted by the same host:port.
func (a Address) SameSystem(other Address) bool {
	return a.Host == other.Host && a.Port == other.Port
}

// String renders a human-readable representation of the address, used for
// logging and as the wire "sender_addr" field.
func (a Address) String() string {
	var b strings.Builder
	b.WriteString(a.ID)
	b.WriteString("@")
	b.WriteString(a.Host)
	b.WriteString(":")
	b.WriteString(strconv.Itoa(a.Port))
	if len(a.ParentChain) > 0 {
		b.WriteString("[")
		b.WriteString(strings.Join(a.ParentChain, "/"))
		b.WriteString("]")
	}

	return b.String()
}

// tuple is the wire representation of an Address's routable identity: id,
// host, port. The parent chain is not carried on the wire; a remote system
// only needs enough to route a reply back to the sender's inbox.
type tuple struct {
	ID   string
	Host string
	Port int
}

func (a Address) toTuple() tuple {
	return tuple{ID: a.ID, Host: a.Host, Port: a.Port}
}

func fromTuple(t tuple) Address {
	return Address{ID: t.ID, Host: t.Host, Port: t.Port}
}
