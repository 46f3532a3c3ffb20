package actor

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Status is the lifecycle state of an actor as tracked by its parent's
// registry entry.
type Status int

const (
	// StatusSetup is the state between construction and entering the
	// receive loop.
	StatusSetup Status = iota

	// StatusRunning is the state while the actor's receive loop is active.
	StatusRunning

	// StatusStopped is the terminal state after cleanup has completed. No
	// registry entry exists for an actor in this state once cleanup
	// finishes; the status itself is still reported in
	// SetActorStatus/ActorStatusResponse messages on the way out.
	StatusStopped

	// StatusUnreachable is reported for a remote actor whose system could
	// not be contacted.
	StatusUnreachable
)

// String implements fmt.Stringer for logging.
func (s Status) String() string {
	switch s {
	case StatusSetup:
		return "SETUP"
	case StatusRunning:
		return "RUNNING"
	case StatusStopped:
		return "STOPPED"
	case StatusUnreachable:
		return "UNREACHABLE"
	default:
		return fmt.Sprintf("STATUS(%d)", int(s))
	}
}

// Message is a sealed interface for anything that can flow through a mailbox
// or over the wire. The interface is "sealed" by the unexported
// messageMarker method: only types embedding BaseMessage (or defined in this
// package) can satisfy it, generalized from a single generic message type to
// a closed set of routing/maintenance variants plus an open, registered set
// of user payloads.
type Message interface {
	// messageMarker is the unexported method that seals the interface.
	messageMarker()

	// MessageType returns the wire type tag used for routing and codec
	// dispatch. Every concrete Message type (framework or user-defined)
	// must return a stable, globally unique name.
	MessageType() string
}

// BaseMessage is embedded by every concrete Message implementation to
// satisfy the sealed interface's unexported method.
type BaseMessage struct{}

func (BaseMessage) messageMarker() {}

// messageTypeRegistry maps a wire type tag to a constructor returning a
// freshly allocated, addressable pointer to that type. Pointers are used as
// the constructor's return type so json.Unmarshal has something addressable
// to decode into; the pointer's method set still satisfies Message because
// MessageType and messageMarker are declared with value receivers.
var (
	messageTypeMu  sync.RWMutex
	messageTypeReg = make(map[string]func() any)
)

// RegisterMessageType makes a user-defined message type decodable from the
// wire. ctor must return a pointer to a zero-valued instance of the type,
// e.g. RegisterMessageType("Ping", func() any { return &Ping{} }). Calling
// this twice for the same name is a programmer error and panics: a
// fail-fast registration check applied here rather than deferred to first
// use.
func RegisterMessageType(name string, ctor func() any) {
	messageTypeMu.Lock()
	defer messageTypeMu.Unlock()

	if _, exists := messageTypeReg[name]; exists {
		panic("actor: message type already registered: " + name)
	}

	messageTypeReg[name] = ctor
}

func lookupMessageCtor(name string) (func() any, bool) {
	messageTypeMu.RLock()
	defer messageTypeMu.RUnlock()

	ctor, ok := messageTypeReg[name]
	return ctor, ok
}

func init() {
	RegisterMessageType("Tell", func() any { return &Tell{} })
	RegisterMessageType("Ask", func() any { return &Ask{} })
	RegisterMessageType("Broadcast", func() any { return &Broadcast{} })
	RegisterMessageType("Forward", func() any { return &Forward{} })
	RegisterMessageType("ReturnMessage", func() any { return &ReturnMessage{} })
	RegisterMessageType("CreateActor", func() any { return &CreateActor{} })
	RegisterMessageType("RemoveActor", func() any { return &RemoveActor{} })
	RegisterMessageType("StopActor", func() any { return &StopActor{} })
	RegisterMessageType("SetActorStatus", func() any { return &SetActorStatus{} })
	RegisterMessageType("GetActorStatus", func() any { return &GetActorStatus{} })
	RegisterMessageType("ActorStatusResponse", func() any { return &ActorStatusResponse{} })
	RegisterMessageType("RegisterGlobalActor", func() any { return &RegisterGlobalActor{} })
	RegisterMessageType("UnRegisterGlobalActor", func() any { return &UnRegisterGlobalActor{} })
	RegisterMessageType("SetConventionLeader", func() any { return &SetConventionLeader{} })
	RegisterMessageType("RegisterRemoteSystem", func() any { return &RegisterRemoteSystem{} })
	RegisterMessageType("UnRegisterRemoteSystem", func() any { return &UnRegisterRemoteSystem{} })
	RegisterMessageType("Poison", func() any { return &Poison{} })
}

// wireEnvelope is the tagged-union wrapper used to encode a nested Message
// field (e.g. the payload carried by Tell or Ask) self-describingly.
type wireEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// wrapMessage encodes m as a wireEnvelope. A nil m encodes as a zero-value
// wireEnvelope (empty type), which unwrapMessage treats as nil.
func wrapMessage(m Message) (wireEnvelope, error) {
	if m == nil {
		return wireEnvelope{}, nil
	}

	data, err := json.Marshal(m)
	if err != nil {
		return wireEnvelope{}, fmt.Errorf("%w: %s: %v",
			ErrNotSerializable, m.MessageType(), err)
	}

	return wireEnvelope{Type: m.MessageType(), Data: data}, nil
}

// unwrapMessage reverses wrapMessage, looking up the registered constructor
// for the envelope's type tag. It returns ErrUnregisteredMessageType if no
// constructor was registered for that tag.
func unwrapMessage(w wireEnvelope) (Message, error) {
	if w.Type == "" {
		return nil, nil
	}

	ctor, ok := lookupMessageCtor(w.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnregisteredMessageType, w.Type)
	}

	ptr := ctor()
	if err := json.Unmarshal(w.Data, ptr); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", w.Type, err)
	}

	msg, ok := ptr.(Message)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not implement Message",
			ErrNotSerializable, w.Type)
	}

	return msg, nil
}

// --- Routing variants ---
//
// Every routing variant embeds Route, which carries the Target and Sender
// addresses on the message itself, so they travel with the payload when it
// is serialized. The forwarding algorithm (actor.go's route) and the wire
// codec read the target and sender from the mailbox envelope and from
// Encode's arguments, not from these fields.

// Route carries the common target/sender fields shared by every routing
// variant.
type Route struct {
	BaseMessage
	Target Address
	Sender Address
}

// Tell is fire-and-forget: the wrapped message is delivered to the target's
// Receive with no reply expected.
type Tell struct {
	Route
	Msg Message
}

func (Tell) MessageType() string { return "Tell" }

type tellWire struct {
	Target Address      `json:"target"`
	Sender Address      `json:"sender"`
	Msg    wireEnvelope `json:"msg"`
}

func (t Tell) MarshalJSON() ([]byte, error) {
	inner, err := wrapMessage(t.Msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(tellWire{Target: t.Target, Sender: t.Sender, Msg: inner})
}

func (t *Tell) UnmarshalJSON(data []byte) error {
	var w tellWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	msg, err := unwrapMessage(w.Msg)
	if err != nil {
		return err
	}
	t.Target, t.Sender, t.Msg = w.Target, w.Sender, msg
	return nil
}

// Ask is request-reply: the wrapped message is delivered to the target's
// Receive, and the target's return value is wrapped in a ReturnMessage and
// routed back to the sender.
type Ask struct {
	Route
	Msg Message

	// ReplyID is an optional correlation id carried on the wire. Neither the
	// actor core nor the façade sets or reads it; the façade correlates
	// replies by the address of its per-call reply sink.
	ReplyID string
}

func (Ask) MessageType() string { return "Ask" }

type askWire struct {
	Target  Address      `json:"target"`
	Sender  Address      `json:"sender"`
	Msg     wireEnvelope `json:"msg"`
	ReplyID string       `json:"reply_id,omitempty"`
}

func (a Ask) MarshalJSON() ([]byte, error) {
	inner, err := wrapMessage(a.Msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(askWire{
		Target: a.Target, Sender: a.Sender, Msg: inner, ReplyID: a.ReplyID,
	})
}

func (a *Ask) UnmarshalJSON(data []byte) error {
	var w askWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	msg, err := unwrapMessage(w.Msg)
	if err != nil {
		return err
	}
	a.Target, a.Sender, a.Msg, a.ReplyID = w.Target, w.Sender, msg, w.ReplyID
	return nil
}

// Broadcast fans the wrapped message out to every child of the target, in
// child-insertion order, and also invokes the target's own Receive.
type Broadcast struct {
	Route
	Msg Message
}

func (Broadcast) MessageType() string { return "Broadcast" }

func (b Broadcast) MarshalJSON() ([]byte, error) {
	inner, err := wrapMessage(b.Msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(tellWire{Target: b.Target, Sender: b.Sender, Msg: inner})
}

func (b *Broadcast) UnmarshalJSON(data []byte) error {
	var w tellWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	msg, err := unwrapMessage(w.Msg)
	if err != nil {
		return err
	}
	b.Target, b.Sender, b.Msg = w.Target, w.Sender, msg
	return nil
}

// Forward carries the remaining hops of an address chain. Each actor that
// receives a Forward consumes the head of Chain: if it names a known child,
// the Forward (with the head popped) is re-enqueued into that child's
// mailbox; if it names self, Msg is dispatched locally; otherwise the
// message is delivered directly to its final target.
type Forward struct {
	Route
	Msg   Message
	Chain []string
}

func (Forward) MessageType() string { return "Forward" }

type forwardWire struct {
	Target Address      `json:"target"`
	Sender Address      `json:"sender"`
	Msg    wireEnvelope `json:"msg"`
	Chain  []string     `json:"chain,omitempty"`
}

func (f Forward) MarshalJSON() ([]byte, error) {
	inner, err := wrapMessage(f.Msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(forwardWire{
		Target: f.Target, Sender: f.Sender, Msg: inner, Chain: f.Chain,
	})
}

func (f *Forward) UnmarshalJSON(data []byte) error {
	var w forwardWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	msg, err := unwrapMessage(w.Msg)
	if err != nil {
		return err
	}
	f.Target, f.Sender, f.Msg, f.Chain = w.Target, w.Sender, msg, w.Chain
	return nil
}

// HeadAndRest splits the forward chain into its head id and the remaining
// chain, or reports ok=false if Chain is empty.
func (f Forward) HeadAndRest() (head string, rest []string, ok bool) {
	if len(f.Chain) == 0 {
		return "", nil, false
	}
	return f.Chain[0], f.Chain[1:], true
}

// ReturnMessage wraps the reply to an Ask. The dispatcher always produces
// one of these for a handler's return value (see DESIGN.md Open Question
// resolution #2): the return value is never reinterpreted as a
// caller-constructed Ask.
type ReturnMessage struct {
	Route
	Value Message
}

func (ReturnMessage) MessageType() string { return "ReturnMessage" }

type returnWire struct {
	Target Address      `json:"target"`
	Sender Address      `json:"sender"`
	Value  wireEnvelope `json:"value"`
}

func (r ReturnMessage) MarshalJSON() ([]byte, error) {
	inner, err := wrapMessage(r.Value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(returnWire{Target: r.Target, Sender: r.Sender, Value: inner})
}

func (r *ReturnMessage) UnmarshalJSON(data []byte) error {
	var w returnWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	msg, err := unwrapMessage(w.Value)
	if err != nil {
		return err
	}
	r.Target, r.Sender, r.Value = w.Target, w.Sender, msg
	return nil
}

// --- Maintenance variants ---

// CreateActor instantiates a new child actor from a registered class.
type CreateActor struct {
	BaseMessage
	Class       string
	Config      ActorConfig
	ParentChain []string
}

func (CreateActor) MessageType() string { return "CreateActor" }

// RemoveActor stops and drops the registry entry for a child.
type RemoveActor struct {
	BaseMessage
	Addr Address
}

func (RemoveActor) MessageType() string { return "RemoveActor" }

// StopActor requests that its recipient terminate its receive loop.
type StopActor struct {
	BaseMessage
}

func (StopActor) MessageType() string { return "StopActor" }

// SetActorStatus updates the status recorded for Addr in the recipient's
// registry (or, when sent to the system, marks the sender's own exit).
type SetActorStatus struct {
	BaseMessage
	Addr   Address
	Status Status
}

func (SetActorStatus) MessageType() string { return "SetActorStatus" }

// GetActorStatus requests an ActorStatusResponse for Addr.
type GetActorStatus struct {
	BaseMessage
	Addr Address
}

func (GetActorStatus) MessageType() string { return "GetActorStatus" }

// ActorStatusResponse answers a GetActorStatus.
type ActorStatusResponse struct {
	BaseMessage
	Status Status
}

func (ActorStatusResponse) MessageType() string { return "ActorStatusResponse" }

// RegisterGlobalActor binds a human-readable name to Addr in the system's
// global actor table.
type RegisterGlobalActor struct {
	BaseMessage
	Name string
	Addr Address
}

func (RegisterGlobalActor) MessageType() string { return "RegisterGlobalActor" }

// UnRegisterGlobalActor removes a name from the system's global actor table.
type UnRegisterGlobalActor struct {
	BaseMessage
	Name string
	Addr Address
}

func (UnRegisterGlobalActor) MessageType() string { return "UnRegisterGlobalActor" }

// SetConventionLeader updates the system's convention-leader pointer.
type SetConventionLeader struct {
	BaseMessage
	Addr Address
}

func (SetConventionLeader) MessageType() string { return "SetConventionLeader" }

// RegisterRemoteSystem records a peer system's address in the leader's
// remote-system table.
type RegisterRemoteSystem struct {
	BaseMessage
	Addr Address
}

func (RegisterRemoteSystem) MessageType() string { return "RegisterRemoteSystem" }

// UnRegisterRemoteSystem removes a peer system's address from the
// remote-system table.
type UnRegisterRemoteSystem struct {
	BaseMessage
	Addr Address
}

func (UnRegisterRemoteSystem) MessageType() string { return "UnRegisterRemoteSystem" }

// Poison is the sentinel value that, when dequeued, terminates an actor's
// receive loop without processing any message queued behind it.
type Poison struct {
	BaseMessage
}

func (Poison) MessageType() string { return "Poison" }
