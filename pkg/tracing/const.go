package tracing

import "go.opentelemetry.io/otel/attribute"

// Span attribute keys used by pinflow
const (
	AttrKeyPinflowErrorCode   = "pinflow.error.code"
	AttrKeyPinflowOp          = "pinflow.op"
	AttrKeyPinflowHandle      = "pinflow.handle"
	AttrKeyPinflowEngine      = "pinflow.engine"
	AttrKeyPinflowOperator    = "pinflow.operator.name"
	AttrKeyPinflowPin         = "pinflow.pin"
	AttrKeyPinflowTransport   = "pinflow.transport"
	AttrKeyPinflowWorkflowPin = "pinflow.workflow.pin"
)

// Attribute values
const (
	AttrValueTransportRemote = "remote"
	AttrValueTransportNative = "native"
)

// Enumerated attributes
var (
	AttrFullTransportRemote = attribute.String(AttrKeyPinflowTransport, AttrValueTransportRemote)
	AttrFullTransportNative = attribute.String(AttrKeyPinflowTransport, AttrValueTransportNative)
)
