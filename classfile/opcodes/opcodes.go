// Package opcodes defines the numeric constants of the JVM class-file
// format: opcodes, access flags, class-file versions, constant-pool tags'
// companions (method handle kinds, stack-map frame tags).
package opcodes

// Class-file versions. The minor version occupies the 16 most significant
// bits and the major version the 16 least significant bits, following the
// teacher's packed encoding.
const (
	V1_1 = 3<<16 | 45
	V1_2 = 0<<16 | 46
	V1_3 = 0<<16 | 47
	V1_4 = 0<<16 | 48
	V1_5 = 0<<16 | 49
	V1_6 = 0<<16 | 50
	V1_7 = 0<<16 | 51
	V1_8 = 0<<16 | 52
	V9   = 0<<16 | 53
	V10  = 0<<16 | 54
	V11  = 0<<16 | 55
	V12  = 0<<16 | 56
	V13  = 0<<16 | 57
	V14  = 0<<16 | 58
	V15  = 0<<16 | 59
	V16  = 0<<16 | 60
	V17  = 0<<16 | 61
	V18  = 0<<16 | 62
	V19  = 0<<16 | 63
	V20  = 0<<16 | 64
	V21  = 0<<16 | 65
	V22  = 0<<16 | 66
	V23  = 0<<16 | 67

	// MajorV23 is the highest major version this toolkit accepts (spec §6.1).
	MajorV23 = 67
)

// Access flags (class, field, method, parameter, module as annotated).
const (
	ACC_PUBLIC       = 0x0001 // class, field, method
	ACC_PRIVATE      = 0x0002 // class, field, method
	ACC_PROTECTED    = 0x0004 // class, field, method
	ACC_STATIC       = 0x0008 // field, method
	ACC_FINAL        = 0x0010 // class, field, method, parameter
	ACC_SUPER        = 0x0020 // class
	ACC_SYNCHRONIZED = 0x0020 // method
	ACC_OPEN         = 0x0020 // module
	ACC_TRANSITIVE   = 0x0020 // module requires
	ACC_VOLATILE     = 0x0040 // field
	ACC_BRIDGE       = 0x0040 // method
	ACC_STATIC_PHASE = 0x0040 // module requires
	ACC_VARARGS      = 0x0080 // method
	ACC_TRANSIENT    = 0x0080 // field
	ACC_NATIVE       = 0x0100 // method
	ACC_INTERFACE    = 0x0200 // class
	ACC_ABSTRACT     = 0x0400 // class, method
	ACC_STRICT       = 0x0800 // method
	ACC_SYNTHETIC    = 0x1000 // class, field, method, parameter, module
	ACC_ANNOTATION   = 0x2000 // class
	ACC_ENUM         = 0x4000 // class, field, inner class
	ACC_MANDATED     = 0x8000 // parameter, module, module *
	ACC_MODULE       = 0x8000 // class
	ACC_DEPRECATED   = 0x20000
)

// newarray element types.
const (
	T_BOOLEAN = 4
	T_CHAR    = 5
	T_FLOAT   = 6
	T_DOUBLE  = 7
	T_BYTE    = 8
	T_SHORT   = 9
	T_INT     = 10
	T_LONG    = 11
)

// Method handle reference kinds (JVMS §4.4.8).
const (
	H_GETFIELD         = 1
	H_GETSTATIC        = 2
	H_PUTFIELD         = 3
	H_PUTSTATIC        = 4
	H_INVOKEVIRTUAL    = 5
	H_INVOKESTATIC     = 6
	H_INVOKESPECIAL    = 7
	H_NEWINVOKESPECIAL = 8
	H_INVOKEINTERFACE  = 9
)

// Stack-map frame tags, used both in the compressed on-disk encoding and
// in the visitor protocol's "ASM style" frame reporting.
const (
	F_NEW    = -1 // an expanded frame
	F_FULL   = 0
	F_APPEND = 1
	F_CHOP   = 2
	F_SAME   = 3
	F_SAME1  = 4
)

// Verification type tags used inside stack-map frames.
const (
	ITEM_TOP               = 0
	ITEM_INTEGER           = 1
	ITEM_FLOAT             = 2
	ITEM_DOUBLE            = 3
	ITEM_LONG              = 4
	ITEM_NULL              = 5
	ITEM_UNINITIALIZED_THIS = 6
	ITEM_OBJECT            = 7
	ITEM_UNINITIALIZED     = 8
)

// Opcodes, grouped as in JVMS chapter 6. Values identical to the teacher's
// table; extended with the wide/jump-wide/ldc-wide forms it omitted.
const (
	NOP          = 0
	ACONST_NULL  = 1
	ICONST_M1    = 2
	ICONST_0     = 3
	ICONST_1     = 4
	ICONST_2     = 5
	ICONST_3     = 6
	ICONST_4     = 7
	ICONST_5     = 8
	LCONST_0     = 9
	LCONST_1     = 10
	FCONST_0     = 11
	FCONST_1     = 12
	FCONST_2     = 13
	DCONST_0     = 14
	DCONST_1     = 15
	BIPUSH       = 16
	SIPUSH       = 17
	LDC          = 18
	LDC_W        = 19
	LDC2_W       = 20
	ILOAD        = 21
	LLOAD        = 22
	FLOAD        = 23
	DLOAD        = 24
	ALOAD        = 25
	ILOAD_0      = 26
	ILOAD_1      = 27
	ILOAD_2      = 28
	ILOAD_3      = 29
	LLOAD_0      = 30
	LLOAD_1      = 31
	LLOAD_2      = 32
	LLOAD_3      = 33
	FLOAD_0      = 34
	FLOAD_1      = 35
	FLOAD_2      = 36
	FLOAD_3      = 37
	DLOAD_0      = 38
	DLOAD_1      = 39
	DLOAD_2      = 40
	DLOAD_3      = 41
	ALOAD_0      = 42
	ALOAD_1      = 43
	ALOAD_2      = 44
	ALOAD_3      = 45
	IALOAD       = 46
	LALOAD       = 47
	FALOAD       = 48
	DALOAD       = 49
	AALOAD       = 50
	BALOAD       = 51
	CALOAD       = 52
	SALOAD       = 53
	ISTORE       = 54
	LSTORE       = 55
	FSTORE       = 56
	DSTORE       = 57
	ASTORE       = 58
	ISTORE_0     = 59
	ISTORE_1     = 60
	ISTORE_2     = 61
	ISTORE_3     = 62
	LSTORE_0     = 63
	LSTORE_1     = 64
	LSTORE_2     = 65
	LSTORE_3     = 66
	FSTORE_0     = 67
	FSTORE_1     = 68
	FSTORE_2     = 69
	FSTORE_3     = 70
	DSTORE_0     = 71
	DSTORE_1     = 72
	DSTORE_2     = 73
	DSTORE_3     = 74
	ASTORE_0     = 75
	ASTORE_1     = 76
	ASTORE_2     = 77
	ASTORE_3     = 78
	IASTORE      = 79
	LASTORE      = 80
	FASTORE      = 81
	DASTORE      = 82
	AASTORE      = 83
	BASTORE      = 84
	CASTORE      = 85
	SASTORE      = 86
	POP          = 87
	POP2         = 88
	DUP          = 89
	DUP_X1       = 90
	DUP_X2       = 91
	DUP2         = 92
	DUP2_X1      = 93
	DUP2_X2      = 94
	SWAP         = 95
	IADD         = 96
	LADD         = 97
	FADD         = 98
	DADD         = 99
	ISUB         = 100
	LSUB         = 101
	FSUB         = 102
	DSUB         = 103
	IMUL         = 104
	LMUL         = 105
	FMUL         = 106
	DMUL         = 107
	IDIV         = 108
	LDIV         = 109
	FDIV         = 110
	DDIV         = 111
	IREM         = 112
	LREM         = 113
	FREM         = 114
	DREM         = 115
	INEG         = 116
	LNEG         = 117
	FNEG         = 118
	DNEG         = 119
	ISHL         = 120
	LSHL         = 121
	ISHR         = 122
	LSHR         = 123
	IUSHR        = 124
	LUSHR        = 125
	IAND         = 126
	LAND         = 127
	IOR          = 128
	LOR          = 129
	IXOR         = 130
	LXOR         = 131
	IINC         = 132
	I2L          = 133
	I2F          = 134
	I2D          = 135
	L2I          = 136
	L2F          = 137
	L2D          = 138
	F2I          = 139
	F2L          = 140
	F2D          = 141
	D2I          = 142
	D2L          = 143
	D2F          = 144
	I2B          = 145
	I2C          = 146
	I2S          = 147
	LCMP         = 148
	FCMPL        = 149
	FCMPG        = 150
	DCMPL        = 151
	DCMPG        = 152
	IFEQ         = 153
	IFNE         = 154
	IFLT         = 155
	IFGE         = 156
	IFGT         = 157
	IFLE         = 158
	IF_ICMPEQ    = 159
	IF_ICMPNE    = 160
	IF_ICMPLT    = 161
	IF_ICMPGE    = 162
	IF_ICMPGT    = 163
	IF_ICMPLE    = 164
	IF_ACMPEQ    = 165
	IF_ACMPNE    = 166
	GOTO         = 167
	JSR          = 168
	RET          = 169
	TABLESWITCH  = 170
	LOOKUPSWITCH = 171
	IRETURN      = 172
	LRETURN      = 173
	FRETURN      = 174
	DRETURN      = 175
	ARETURN      = 176
	RETURN       = 177
	GETSTATIC    = 178
	PUTSTATIC    = 179
	GETFIELD     = 180
	PUTFIELD     = 181
	INVOKEVIRTUAL   = 182
	INVOKESPECIAL   = 183
	INVOKESTATIC    = 184
	INVOKEINTERFACE = 185
	INVOKEDYNAMIC   = 186
	NEW             = 187
	NEWARRAY        = 188
	ANEWARRAY       = 189
	ARRAYLENGTH     = 190
	ATHROW          = 191
	CHECKCAST       = 192
	INSTANCEOF      = 193
	MONITORENTER    = 194
	MONITOREXIT     = 195
	WIDE            = 196
	MULTIANEWARRAY  = 197
	IFNULL          = 198
	IFNONNULL       = 199
	GOTO_W          = 200
	JSR_W           = 201
)

// IsLoadStoreCompact reports whether opcode is one of the iload_0..astore_3
// single-byte compactions the writer re-derives from ILoad(i)/IStore(i).
func IsLoadStoreCompact(opcode int) bool {
	return opcode >= ILOAD_0 && opcode <= ALOAD_3 || opcode >= ISTORE_0 && opcode <= ASTORE_3
}
