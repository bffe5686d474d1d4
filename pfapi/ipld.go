package pfapi

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"

	"github.com/ipld/go-ipld-prime"
	"github.com/ipld/go-ipld-prime/codec/dagcbor"
	"github.com/ipld/go-ipld-prime/codec/dagjson"
	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/node/bindnode"
	"github.com/ipld/go-ipld-prime/schema"
)

// This file is for IPLD-related helpers and constants.

// TypeSystem describes all our API data types and their representation strategies in IPLD Schema form.
// Each file in this package accumulates its own types in an init function.
var TypeSystem = func() *schema.TypeSystem {
	ts := new(schema.TypeSystem)
	ts.Init()
	return ts
}()

func init() {
	TypeSystem.Accumulate(schema.SpawnBool("Bool"))
	TypeSystem.Accumulate(schema.SpawnInt("Int32"))
	TypeSystem.Accumulate(schema.SpawnInt("Int64"))
	TypeSystem.Accumulate(schema.SpawnInt("Uint64"))
	TypeSystem.Accumulate(schema.SpawnFloat("Double"))
	TypeSystem.Accumulate(schema.SpawnString("String"))
	TypeSystem.Accumulate(schema.SpawnBytes("Bytes"))
	TypeSystem.Accumulate(schema.SpawnList("List__Int64", "Int64", false))
	TypeSystem.Accumulate(schema.SpawnList("List__Double", "Double", false))
	TypeSystem.Accumulate(schema.SpawnList("List__String", "String", false))
}

func typeByName(name string) schema.Type {
	t := TypeSystem.TypeByName(name)
	if t == nil {
		panic(fmt.Sprintf("pfapi: type %q missing from TypeSystem", name))
	}
	return t
}

// EncodeCBOR serializes ptr as the named schema type in dag-cbor.
//
// Errors:
//
//   - pinflow-error-serialization --
func EncodeCBOR(ptr interface{}, typeName string) ([]byte, error) {
	b, err := ipld.Marshal(dagcbor.Encode, ptr, typeByName(typeName))
	if err != nil {
		return nil, ErrorSerialization("encoding "+typeName, err)
	}
	return b, nil
}

// DecodeCBOR fills ptr from dag-cbor data of the named schema type.
//
// Errors:
//
//   - pinflow-error-serialization --
func DecodeCBOR(data []byte, ptr interface{}, typeName string) error {
	if _, err := ipld.Unmarshal(data, dagcbor.Decode, ptr, typeByName(typeName)); err != nil {
		return ErrorSerialization("decoding "+typeName, err)
	}
	return nil
}

// EncodeJSON serializes ptr as the named schema type in dag-json.
//
// Errors:
//
//   - pinflow-error-serialization --
func EncodeJSON(ptr interface{}, typeName string) ([]byte, error) {
	b, err := ipld.Marshal(dagjson.Encode, ptr, typeByName(typeName))
	if err != nil {
		return nil, ErrorSerialization("encoding "+typeName, err)
	}
	return b, nil
}

// DecodeJSON fills ptr from dag-json data of the named schema type.
// dag-json writes integral floats without a fraction, so an integer token
// is accepted wherever the schema wants a Double.
//
// Errors:
//
//   - pinflow-error-serialization --
func DecodeJSON(data []byte, ptr interface{}, typeName string) error {
	nb := bindnode.Prototype(ptr, typeByName(typeName)).Representation().NewBuilder()
	if err := dagjson.Decode(intsAsFloats{nb}, bytes.NewReader(bytes.TrimSpace(data))); err != nil {
		return ErrorSerialization("decoding "+typeName, err)
	}
	reflect.ValueOf(ptr).Elem().Set(reflect.ValueOf(bindnode.Unwrap(nb.Build())).Elem())
	return nil
}

// intsAsFloats retries a rejected AssignInt as AssignFloat.
// bindnode checks the kind before touching its value, so the retry starts clean.
type intsAsFloats struct {
	datamodel.NodeAssembler
}

func (na intsAsFloats) AssignInt(i int64) error {
	err := na.NodeAssembler.AssignInt(i)
	if errors.As(err, &datamodel.ErrWrongKind{}) {
		if err2 := na.NodeAssembler.AssignFloat(float64(i)); err2 == nil {
			return nil
		}
	}
	return err
}

func (na intsAsFloats) BeginMap(sizeHint int64) (datamodel.MapAssembler, error) {
	ma, err := na.NodeAssembler.BeginMap(sizeHint)
	if err != nil {
		return nil, err
	}
	return mapIntsAsFloats{ma}, nil
}

func (na intsAsFloats) BeginList(sizeHint int64) (datamodel.ListAssembler, error) {
	la, err := na.NodeAssembler.BeginList(sizeHint)
	if err != nil {
		return nil, err
	}
	return listIntsAsFloats{la}, nil
}

type mapIntsAsFloats struct {
	datamodel.MapAssembler
}

func (ma mapIntsAsFloats) AssembleEntry(k string) (datamodel.NodeAssembler, error) {
	va, err := ma.MapAssembler.AssembleEntry(k)
	if err != nil {
		return nil, err
	}
	return intsAsFloats{va}, nil
}

func (ma mapIntsAsFloats) AssembleValue() datamodel.NodeAssembler {
	return intsAsFloats{ma.MapAssembler.AssembleValue()}
}

type listIntsAsFloats struct {
	datamodel.ListAssembler
}

func (la listIntsAsFloats) AssembleValue() datamodel.NodeAssembler {
	return intsAsFloats{la.ListAssembler.AssembleValue()}
}
