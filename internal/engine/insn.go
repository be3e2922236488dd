package engine

import (
	"fmt"

	"jitkit/internal/types"
)

// Op is an engine opcode.
type Op uint8

const (
	OpNop Op = iota

	// arithmetic and bitwise, Dest = A op B
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpPow
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr

	// unary, Dest = op A
	OpNeg
	OpNot

	// comparisons, Dest(bool) = A op B
	OpLt
	OpLe
	OpGt
	OpGe
	OpEq
	OpNe

	OpToBool
	OpToNotBool
	OpConvert
	OpCopy
	OpAddressOf
	OpLoadRel
	OpStoreRel
	OpLoadElem
	OpStoreElem
	OpAlloca

	OpLabel
	OpBranch
	OpBranchIf
	OpBranchIfNot
	OpReturn

	OpCall
	OpCallNative
	OpMath
)

var opNames = [...]string{
	OpNop:         "nop",
	OpAdd:         "add",
	OpSub:         "sub",
	OpMul:         "mul",
	OpDiv:         "div",
	OpRem:         "rem",
	OpPow:         "pow",
	OpAnd:         "and",
	OpOr:          "or",
	OpXor:         "xor",
	OpShl:         "shl",
	OpShr:         "shr",
	OpNeg:         "neg",
	OpNot:         "not",
	OpLt:          "lt",
	OpLe:          "le",
	OpGt:          "gt",
	OpGe:          "ge",
	OpEq:          "eq",
	OpNe:          "ne",
	OpToBool:      "to_bool",
	OpToNotBool:   "to_not_bool",
	OpConvert:     "convert",
	OpCopy:        "store",
	OpAddressOf:   "address_of",
	OpLoadRel:     "load_relative",
	OpStoreRel:    "store_relative",
	OpLoadElem:    "load_elem",
	OpStoreElem:   "store_elem",
	OpAlloca:      "alloca",
	OpLabel:       "label",
	OpBranch:      "branch",
	OpBranchIf:    "branch_if",
	OpBranchIfNot: "branch_if_not",
	OpReturn:      "return",
	OpCall:        "call",
	OpCallNative:  "call_native",
	OpMath:        "math",
}

func (op Op) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", op)
}

// IsBinary reports whether op is an arithmetic or bitwise binary opcode.
func (op Op) IsBinary() bool {
	return op >= OpAdd && op <= OpShr
}

// IsCompare reports whether op is a comparison.
func (op Op) IsCompare() bool {
	return op >= OpLt && op <= OpNe
}

// MathOp names a floating point intrinsic.
type MathOp uint8

const (
	MathAcos MathOp = iota + 1
	MathAsin
	MathAtan
	MathAtan2
	MathCeil
	MathCos
	MathCosh
	MathExp
	MathFloor
	MathLog
	MathLog10
	MathRint
	MathRound
	MathSin
	MathSinh
	MathSqrt
	MathTan
	MathTanh
)

var mathNames = map[MathOp]string{
	MathAcos:  "acos",
	MathAsin:  "asin",
	MathAtan:  "atan",
	MathAtan2: "atan2",
	MathCeil:  "ceil",
	MathCos:   "cos",
	MathCosh:  "cosh",
	MathExp:   "exp",
	MathFloor: "floor",
	MathLog:   "log",
	MathLog10: "log10",
	MathRint:  "rint",
	MathRound: "round",
	MathSin:   "sin",
	MathSinh:  "sinh",
	MathSqrt:  "sqrt",
	MathTan:   "tan",
	MathTanh:  "tanh",
}

func (m MathOp) String() string {
	if name, ok := mathNames[m]; ok {
		return name
	}
	return fmt.Sprintf("MathOp(%d)", m)
}

// Arity is the number of operands the intrinsic takes.
func (m MathOp) Arity() int {
	if m == MathAtan2 {
		return 2
	}
	return 1
}

// ParseMathOp resolves an intrinsic by name.
func ParseMathOp(name string) (MathOp, bool) {
	for op, n := range mathNames {
		if n == name {
			return op, true
		}
	}
	return 0, false
}

// Insn is one entry of a function's instruction stream.
type Insn struct {
	Op     Op
	Dest   ValueID
	A      ValueID
	B      ValueID
	Args   []ValueID
	Label  LabelID
	Offset int64
	Type   types.TypeID // loaded/converted type, call signature
	Callee FuncID
	Native string
	Math   MathOp

	// rep of the operation: operand rep for comparisons and stores,
	// element rep for loads and indexed access.
	rep Rep
	// implicit marks the return appended by DefaultReturn.
	implicit bool
}
