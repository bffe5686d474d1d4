package pfapi

import (
	"github.com/ipld/go-ipld-prime/schema"
)

// Messages of the remote wire protocol.
// Every frame carries exactly one Message.

func init() {
	TypeSystem.Accumulate(schema.SpawnUnion("Message",
		[]schema.TypeName{
			"Hello",
			"Welcome",
			"Request",
			"Response",
			"Progress",
		},
		schema.SpawnUnionRepresentationKeyed(map[string]schema.TypeName{
			"hello":    "Hello",
			"welcome":  "Welcome",
			"request":  "Request",
			"response": "Response",
			"progress": "Progress",
		})))
	TypeSystem.Accumulate(schema.SpawnStruct("Hello",
		[]schema.StructField{
			schema.SpawnStructField("client", "String", false, false),
			schema.SpawnStructField("name", "String", false, false),
			schema.SpawnStructField("capabilities", "List__String", false, false),
		},
		schema.SpawnStructRepresentationMap(nil)))
	TypeSystem.Accumulate(schema.SpawnStruct("Welcome",
		[]schema.StructField{
			schema.SpawnStructField("engine", "String", false, false),
			schema.SpawnStructField("version", "Version", false, false),
			schema.SpawnStructField("context", "List__String", false, false),
			schema.SpawnStructField("inProcess", "Bool", false, false),
		},
		schema.SpawnStructRepresentationMap(nil)))
	TypeSystem.Accumulate(schema.SpawnStruct("Request",
		[]schema.StructField{
			schema.SpawnStructField("ID", "Uint64", false, false),
			schema.SpawnStructField("op", "String", false, false),
			schema.SpawnStructField("handle", "Uint64", false, false),
			schema.SpawnStructField("args", "List__Value", false, false),
			schema.SpawnStructField("progress", "Bool", false, false),
		},
		schema.SpawnStructRepresentationMap(map[string]string{"ID": "id"})))
	TypeSystem.Accumulate(schema.SpawnStruct("Response",
		[]schema.StructField{
			schema.SpawnStructField("ID", "Uint64", false, false),
			schema.SpawnStructField("result", "Value", true, false),
			schema.SpawnStructField("fault", "Fault", true, false),
		},
		schema.SpawnStructRepresentationMap(map[string]string{"ID": "id"})))
	TypeSystem.Accumulate(schema.SpawnStruct("Fault",
		[]schema.StructField{
			schema.SpawnStructField("code", "String", false, false),
			schema.SpawnStructField("message", "String", false, false),
			schema.SpawnStructField("stack", "String", false, false),
		},
		schema.SpawnStructRepresentationMap(nil)))
	TypeSystem.Accumulate(schema.SpawnStruct("Progress",
		[]schema.StructField{
			schema.SpawnStructField("ID", "Uint64", false, false),
			schema.SpawnStructField("label", "String", false, false),
			schema.SpawnStructField("done", "Int64", false, false),
			schema.SpawnStructField("total", "Int64", false, false),
		},
		schema.SpawnStructRepresentationMap(map[string]string{"ID": "id"})))
}

type Message struct {
	Hello    *Hello
	Welcome  *Welcome
	Request  *Request
	Response *Response
	Progress *Progress
}

// Hello opens a session: client identity and requested capabilities.
type Hello struct {
	Client       string
	Name         string
	Capabilities []string
}

// Welcome is the engine's reply to Hello.
// Context lists the licensed capabilities of the engine.
type Welcome struct {
	Engine    string
	Version   Version
	Context   []string
	InProcess bool
}

// HasCapability reports whether the engine context grants a capability.
func (w Welcome) HasCapability(c string) bool {
	for _, x := range w.Context {
		if x == c {
			return true
		}
	}
	return false
}

// Request invokes one engine operation. Handle zero means no target object.
type Request struct {
	ID       uint64
	Op       string
	Handle   uint64
	Args     []Value
	Progress bool
}

// Response answers the Request with the same ID.
type Response struct {
	ID     uint64
	Result *Value
	Fault  *Fault
}

// Fault is the engine-error payload.
type Fault struct {
	Code    string
	Message string
	Stack   string
}

// Progress is emitted by the engine while a progress-enabled request runs.
type Progress struct {
	ID    uint64
	Label string
	Done  int64
	Total int64
}
