// Package symbol holds the constant-pool tag bytes defined by JVMS §4.4,
// plus the bootstrap-method side-table tag used internally by the writer.
package symbol

// Constant-pool entry tags.
const (
	ConstantUtf8Tag              = 1
	ConstantIntegerTag           = 3
	ConstantFloatTag             = 4
	ConstantLongTag              = 5
	ConstantDoubleTag             = 6
	ConstantClassTag             = 7
	ConstantStringTag            = 8
	ConstantFieldrefTag          = 9
	ConstantMethodrefTag         = 10
	ConstantInterfaceMethodrefTag = 11
	ConstantNameAndTypeTag       = 12
	ConstantMethodHandleTag      = 15
	ConstantMethodTypeTag        = 16
	ConstantDynamicTag           = 17
	ConstantInvokeDynamicTag     = 18
	ConstantModuleTag            = 19
	ConstantPackageTag           = 20
)

// BootstrapMethodTag is an internal tag (not present on disk) the writer
// uses to key its bootstrap-method interning table.
const BootstrapMethodTag = 64
