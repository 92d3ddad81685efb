package config

// ConfigFileName is the session configuration file searched by FindConfig.
const ConfigFileName = "resolvekit.yaml"

// TreeFileExtensions are the recognized syntax tree file extensions.
var TreeFileExtensions = []string{".yaml", ".yml"}

// Well-known operator names
const (
	ProvideDelegateName = "provideDelegate"
	GetValueName        = "getValue"
	SetValueName        = "setValue"
	InvokeName          = "invoke"
)

// Built-in package and type names
const (
	BuiltinPackageName = "lang"
	AnyTypeName        = "Any"
	NothingTypeName    = "Nothing"
	UnitTypeName       = "Unit"
	IntTypeName        = "Int"
	LongTypeName       = "Long"
	DoubleTypeName     = "Double"
	FloatTypeName      = "Float"
	BooleanTypeName    = "Boolean"
	CharTypeName       = "Char"
	StringTypeName     = "String"
	FunctionTypeName   = "Function"
	PropertyTypeName   = "KProperty"
)

// BuiltinTypeNames lists the classes of the built-in package, Any first.
var BuiltinTypeNames = []string{
	AnyTypeName,
	NothingTypeName,
	UnitTypeName,
	IntTypeName,
	LongTypeName,
	DoubleTypeName,
	FloatTypeName,
	BooleanTypeName,
	CharTypeName,
	StringTypeName,
	FunctionTypeName,
	PropertyTypeName,
}

// Synthetic names introduced by the scope builder
const (
	FieldName       = "field"
	CompanionName   = "Companion"
	SetterParamName = "value"
)
