package pfapi

// Op is one entry of the versioned engine operation catalogue.
//
// Code is the numeric identifier used by the in-process ABI;
// Name is the identifier used on the wire.
// Since is the first engine version implementing the operation.
// Borrow marks results that may alias engine memory on in-process transports.
type Op struct {
	Code   int32
	Name   string
	Since  Version
	Borrow bool
}

func (o Op) String() string { return o.Name }

var (
	OpHandleRelease     = Op{Code: 1, Name: "handle.release", Since: V(1, 0, 0)}
	OpHandleDuplicate   = Op{Code: 2, Name: "handle.duplicate", Since: V(1, 0, 0)}
	OpEntitySerialize   = Op{Code: 3, Name: "entity.serialize", Since: V(1, 0, 0)}
	OpEntityDeserialize = Op{Code: 4, Name: "entity.deserialize", Since: V(1, 0, 0)}
	OpEntityGetProperty = Op{Code: 5, Name: "entity.get_property", Since: V(1, 0, 0)}
	OpEntitySetProperty = Op{Code: 6, Name: "entity.set_property", Since: V(1, 0, 0)}
	OpEntityNew         = Op{Code: 7, Name: "entity.new", Since: V(1, 0, 0)}
	OpFileUpload        = Op{Code: 8, Name: "file.upload", Since: V(1, 0, 0)}
	OpFileDownload      = Op{Code: 9, Name: "file.download", Since: V(1, 0, 0)}

	OpOperatorList          = Op{Code: 10, Name: "operator.list", Since: V(1, 0, 0)}
	OpOperatorSpec          = Op{Code: 11, Name: "operator.spec", Since: V(1, 0, 0)}
	OpOperatorNew           = Op{Code: 12, Name: "operator.new", Since: V(1, 0, 0)}
	OpOperatorName          = Op{Code: 13, Name: "operator.name", Since: V(1, 0, 0)}
	OpOperatorConnect       = Op{Code: 14, Name: "operator.connect", Since: V(1, 0, 0)}
	OpOperatorConnectOutput = Op{Code: 15, Name: "operator.connect_output", Since: V(1, 0, 0)}
	OpOperatorGetOutput     = Op{Code: 16, Name: "operator.get_output", Since: V(1, 0, 0)}
	OpOperatorRun           = Op{Code: 17, Name: "operator.run", Since: V(1, 0, 0)}
	OpOperatorConfigSet     = Op{Code: 18, Name: "operator.config_set", Since: V(2, 0, 0)}
	OpOperatorConfigGet     = Op{Code: 19, Name: "operator.config_get", Since: V(2, 0, 0)}

	OpFieldNew             = Op{Code: 20, Name: "field.new", Since: V(1, 0, 0)}
	OpFieldGetData         = Op{Code: 21, Name: "field.get_data", Since: V(1, 0, 0)}
	OpFieldSetData         = Op{Code: 22, Name: "field.set_data", Since: V(1, 0, 0)}
	OpFieldGetDataPointer  = Op{Code: 23, Name: "field.get_data_pointer", Since: V(1, 0, 0)}
	OpFieldSetDataPointer  = Op{Code: 24, Name: "field.set_data_pointer", Since: V(1, 0, 0)}
	OpFieldGetScoping      = Op{Code: 25, Name: "field.get_scoping", Since: V(1, 0, 0)}
	OpFieldSetScoping      = Op{Code: 26, Name: "field.set_scoping", Since: V(1, 0, 0)}
	OpFieldGetUnit         = Op{Code: 27, Name: "field.get_unit", Since: V(1, 0, 0)}
	OpFieldSetUnit         = Op{Code: 28, Name: "field.set_unit", Since: V(1, 0, 0)}
	OpFieldGetLocation     = Op{Code: 29, Name: "field.get_location", Since: V(1, 0, 0)}
	OpFieldSetLocation     = Op{Code: 30, Name: "field.set_location", Since: V(1, 0, 0)}
	OpFieldDimensionality  = Op{Code: 31, Name: "field.dimensionality", Since: V(1, 0, 0)}
	OpFieldGetSupport      = Op{Code: 32, Name: "field.get_support", Since: V(1, 0, 0)}
	OpFieldSetSupport      = Op{Code: 33, Name: "field.set_support", Since: V(1, 0, 0)}
	OpFieldAppend          = Op{Code: 34, Name: "field.append", Since: V(1, 0, 0)}
	OpFieldEntityData      = Op{Code: 35, Name: "field.entity_data", Since: V(1, 0, 0)}
	OpFieldEntityDataByID  = Op{Code: 36, Name: "field.entity_data_by_id", Since: V(1, 0, 0)}
	OpFieldGetShellLayer   = Op{Code: 37, Name: "field.get_shell_layer", Since: V(3, 0, 0)}
	OpFieldSetShellLayer   = Op{Code: 38, Name: "field.set_shell_layer", Since: V(3, 0, 0)}
	OpFieldGetName         = Op{Code: 39, Name: "field.get_name", Since: V(1, 0, 0)}
	OpFieldSetName         = Op{Code: 40, Name: "field.set_name", Since: V(1, 0, 0)}
	OpFieldBorrowData      = Op{Code: 41, Name: "field.borrow_data", Since: V(1, 0, 0), Borrow: true}
	OpFieldReturnData      = Op{Code: 42, Name: "field.return_data", Since: V(1, 0, 0)}
	OpFieldElementarySizes = Op{Code: 43, Name: "field.entity_sizes", Since: V(1, 0, 0)}

	OpScopingNew         = Op{Code: 50, Name: "scoping.new", Since: V(1, 0, 0)}
	OpScopingGetIDs      = Op{Code: 51, Name: "scoping.get_ids", Since: V(1, 0, 0)}
	OpScopingSetIDs      = Op{Code: 52, Name: "scoping.set_ids", Since: V(1, 0, 0)}
	OpScopingGetLocation = Op{Code: 53, Name: "scoping.get_location", Since: V(1, 0, 0)}
	OpScopingSetLocation = Op{Code: 54, Name: "scoping.set_location", Since: V(1, 0, 0)}
	OpScopingAppend      = Op{Code: 55, Name: "scoping.append", Since: V(1, 0, 0)}
	OpScopingIndexOf     = Op{Code: 56, Name: "scoping.index_of", Since: V(1, 0, 0)}
	OpScopingIDAt        = Op{Code: 57, Name: "scoping.id_at", Since: V(1, 0, 0)}
	OpScopingSize        = Op{Code: 58, Name: "scoping.size", Since: V(1, 0, 0)}

	OpCollectionNew             = Op{Code: 60, Name: "collection.new", Since: V(1, 0, 0)}
	OpCollectionAddLabel        = Op{Code: 61, Name: "collection.add_label", Since: V(1, 0, 0)}
	OpCollectionLabels          = Op{Code: 62, Name: "collection.labels", Since: V(1, 0, 0)}
	OpCollectionAddEntry        = Op{Code: 63, Name: "collection.add_entry", Since: V(1, 0, 0)}
	OpCollectionGetEntry        = Op{Code: 64, Name: "collection.get_entry", Since: V(1, 0, 0)}
	OpCollectionGetEntryByLabel = Op{Code: 65, Name: "collection.get_entry_by_label", Since: V(1, 0, 0)}
	OpCollectionSize            = Op{Code: 66, Name: "collection.size", Since: V(1, 0, 0)}
	OpCollectionLabelSpace      = Op{Code: 67, Name: "collection.label_space", Since: V(1, 0, 0)}
	OpCollectionNewPrimitive    = Op{Code: 68, Name: "collection.new_primitive", Since: V(1, 0, 0)}
	OpCollectionGetPrimitive    = Op{Code: 69, Name: "collection.get_primitive", Since: V(1, 0, 0)}

	OpLabelSpaceNew = Op{Code: 70, Name: "labelspace.new", Since: V(1, 0, 0)}
	OpLabelSpaceGet = Op{Code: 71, Name: "labelspace.get", Since: V(1, 0, 0)}

	OpDataSourcesNew               = Op{Code: 80, Name: "datasources.new", Since: V(1, 0, 0)}
	OpDataSourcesSetResultPath     = Op{Code: 81, Name: "datasources.set_result_path", Since: V(1, 0, 0)}
	OpDataSourcesAddPath           = Op{Code: 82, Name: "datasources.add_path", Since: V(1, 0, 0)}
	OpDataSourcesAddDomainPath     = Op{Code: 83, Name: "datasources.add_domain_path", Since: V(2, 0, 0)}
	OpDataSourcesRegisterNamespace = Op{Code: 84, Name: "datasources.register_namespace", Since: V(1, 0, 0)}
	OpDataSourcesPaths             = Op{Code: 85, Name: "datasources.paths", Since: V(1, 0, 0)}
	OpDataSourcesResultKey         = Op{Code: 86, Name: "datasources.result_key", Since: V(1, 0, 0)}
	OpDataSourcesAddUpstream       = Op{Code: 87, Name: "datasources.add_upstream", Since: V(2, 0, 0)}

	OpWorkflowNew           = Op{Code: 90, Name: "workflow.new", Since: V(1, 0, 0)}
	OpWorkflowAddOperator   = Op{Code: 91, Name: "workflow.add_operator", Since: V(1, 0, 0)}
	OpWorkflowSetInputName  = Op{Code: 92, Name: "workflow.set_input_name", Since: V(1, 0, 0)}
	OpWorkflowSetOutputName = Op{Code: 93, Name: "workflow.set_output_name", Since: V(1, 0, 0)}
	OpWorkflowInputNames    = Op{Code: 94, Name: "workflow.input_names", Since: V(1, 0, 0)}
	OpWorkflowOutputNames   = Op{Code: 95, Name: "workflow.output_names", Since: V(1, 0, 0)}
	OpWorkflowConnect       = Op{Code: 96, Name: "workflow.connect", Since: V(1, 0, 0)}
	OpWorkflowConnectOutput = Op{Code: 97, Name: "workflow.connect_output", Since: V(1, 0, 0)}
	OpWorkflowGetOutput     = Op{Code: 98, Name: "workflow.get_output", Since: V(1, 0, 0)}
	OpWorkflowConnectWith   = Op{Code: 99, Name: "workflow.connect_with", Since: V(1, 0, 0)}
	OpWorkflowSerialize     = Op{Code: 100, Name: "workflow.serialize", Since: V(1, 0, 0)}
	OpWorkflowDeserialize   = Op{Code: 101, Name: "workflow.deserialize", Since: V(1, 0, 0)}
	OpWorkflowRecord        = Op{Code: 102, Name: "workflow.record", Since: V(2, 0, 0)}
	OpWorkflowGetRecorded   = Op{Code: 103, Name: "workflow.get_recorded", Since: V(2, 0, 0)}
	OpWorkflowTopology      = Op{Code: 104, Name: "workflow.topology", Since: V(4, 0, 0)}
	OpWorkflowOperators     = Op{Code: 105, Name: "workflow.operators", Since: V(1, 0, 0)}
)

// Ops lists the whole catalogue.
var Ops = []Op{
	OpHandleRelease, OpHandleDuplicate, OpEntitySerialize, OpEntityDeserialize,
	OpEntityGetProperty, OpEntitySetProperty, OpEntityNew, OpFileUpload, OpFileDownload,

	OpOperatorList, OpOperatorSpec, OpOperatorNew, OpOperatorName, OpOperatorConnect,
	OpOperatorConnectOutput, OpOperatorGetOutput, OpOperatorRun, OpOperatorConfigSet, OpOperatorConfigGet,

	OpFieldNew, OpFieldGetData, OpFieldSetData, OpFieldGetDataPointer, OpFieldSetDataPointer,
	OpFieldGetScoping, OpFieldSetScoping, OpFieldGetUnit, OpFieldSetUnit, OpFieldGetLocation,
	OpFieldSetLocation, OpFieldDimensionality, OpFieldGetSupport, OpFieldSetSupport, OpFieldAppend,
	OpFieldEntityData, OpFieldEntityDataByID, OpFieldGetShellLayer, OpFieldSetShellLayer,
	OpFieldGetName, OpFieldSetName, OpFieldBorrowData, OpFieldReturnData, OpFieldElementarySizes,

	OpScopingNew, OpScopingGetIDs, OpScopingSetIDs, OpScopingGetLocation, OpScopingSetLocation,
	OpScopingAppend, OpScopingIndexOf, OpScopingIDAt, OpScopingSize,

	OpCollectionNew, OpCollectionAddLabel, OpCollectionLabels, OpCollectionAddEntry,
	OpCollectionGetEntry, OpCollectionGetEntryByLabel, OpCollectionSize, OpCollectionLabelSpace,
	OpCollectionNewPrimitive, OpCollectionGetPrimitive,

	OpLabelSpaceNew, OpLabelSpaceGet,

	OpDataSourcesNew, OpDataSourcesSetResultPath, OpDataSourcesAddPath, OpDataSourcesAddDomainPath,
	OpDataSourcesRegisterNamespace, OpDataSourcesPaths, OpDataSourcesResultKey, OpDataSourcesAddUpstream,

	OpWorkflowNew, OpWorkflowAddOperator, OpWorkflowSetInputName, OpWorkflowSetOutputName,
	OpWorkflowInputNames, OpWorkflowOutputNames, OpWorkflowConnect, OpWorkflowConnectOutput,
	OpWorkflowGetOutput, OpWorkflowConnectWith, OpWorkflowSerialize, OpWorkflowDeserialize,
	OpWorkflowRecord, OpWorkflowGetRecorded, OpWorkflowTopology, OpWorkflowOperators,
}

var (
	opsByName = map[string]Op{}
	opsByCode = map[int32]Op{}
)

func init() {
	for _, op := range Ops {
		if _, exists := opsByCode[op.Code]; exists {
			panic("pfapi: duplicate op code for " + op.Name)
		}
		opsByName[op.Name] = op
		opsByCode[op.Code] = op
	}
}

// OpByName looks up an op by its wire name.
func OpByName(name string) (Op, bool) {
	op, ok := opsByName[name]
	return op, ok
}

// OpByCode looks up an op by its ABI code.
func OpByCode(code int32) (Op, bool) {
	op, ok := opsByCode[code]
	return op, ok
}
