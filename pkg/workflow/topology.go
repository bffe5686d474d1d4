package workflow

import (
	"context"

	"github.com/ipfs/go-cid"
	_ "github.com/ipld/go-ipld-prime/codec/raw"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"
	"github.com/ipld/go-ipld-prime/node/basicnode"

	"github.com/warptools/pinflow/pfapi"
)

// Topology describes members, edges and exposed pins of w. Needs engine 4.0.
//
// Errors:
//
//   - pinflow-error-version-unsupported --
//   - pinflow-error-serialization -- when the engine answer is not a topology
//   - see engine.Engine.Invoke
func (w *Workflow) Topology(ctx context.Context) (pfapi.Topology, error) {
	v, err := w.invoke(ctx, pfapi.OpWorkflowTopology)
	if err != nil {
		return pfapi.Topology{}, err
	}
	raw, err := v.AsBytes()
	if err != nil {
		return pfapi.Topology{}, err
	}
	var topo pfapi.Topology
	if err := pfapi.DecodeJSON(raw, &topo, "Topology"); err != nil {
		return pfapi.Topology{}, err
	}
	return topo, nil
}

// Fingerprint is the content id of the text form of w.
// Workflows with equal text have equal fingerprints, whichever engine holds them.
//
// Errors:
//
//   - pinflow-error-internal -- when the content id cannot be computed
//   - see Workflow.Serialize
func (w *Workflow) Fingerprint(ctx context.Context) (cid.Cid, error) {
	text, err := w.Serialize(ctx)
	if err != nil {
		return cid.Undef, err
	}
	return TextFingerprint(text)
}

// TextFingerprint is the content id of a workflow text form.
//
// Errors:
//
//   - pinflow-error-internal -- when the content id cannot be computed
func TextFingerprint(text string) (cid.Cid, error) {
	lsys := cidlink.DefaultLinkSystem()
	lnk, err := lsys.ComputeLink(cidlink.LinkPrototype{Prefix: cid.Prefix{
		Version:  1,
		Codec:    0x55, // raw
		MhType:   0x13, // sha2-512
		MhLength: 64,
	}}, basicnode.NewBytes([]byte(text)))
	if err != nil {
		return cid.Undef, pfapi.ErrorInternal("computing workflow fingerprint", err)
	}
	return lnk.(cidlink.Link).Cid, nil
}
