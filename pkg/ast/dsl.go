package ast

// Identifier and literal helpers.

func ID(name string) *Identifier {
	return NewIdentifier(name)
}

func Num(value float64) *NumberLiteral {
	return NewNumberLiteral(value)
}

func Str(value string) *StringLiteral {
	return NewStringLiteral(value)
}

func FieldInit(name string, value Expression) *StructFieldInitializer {
	return NewStructFieldInitializer(ID(name), value)
}

func StructLit(structType string, fields ...*StructFieldInitializer) *StructLiteral {
	return NewStructLiteral(ID(structType), fields)
}

// Expression helpers.

func Member(object Expression, member string) *MemberAccessExpression {
	return NewMemberAccessExpression(object, ID(member))
}

func Index(object, index Expression) *IndexExpression {
	return NewIndexExpression(object, index)
}

func Call(callee string, args ...Expression) *FunctionCall {
	return NewFunctionCall(ID(callee), args)
}

func CallExpr(callee Expression, args ...Expression) *FunctionCall {
	return NewFunctionCall(callee, args)
}

func MethodCall(object Expression, method string, args ...Expression) *FunctionCall {
	return NewFunctionCall(Member(object, method), args)
}

func Bin(op string, left, right Expression) *BinaryExpression {
	return NewBinaryExpression(op, left, right)
}

func Ref(target AssignmentTarget) *ReferenceExpression {
	return NewReferenceExpression(target)
}

func Deref(reference Expression) *DereferenceExpression {
	return NewDereferenceExpression(reference)
}

func Assign(target AssignmentTarget, value Expression) *AssignmentExpression {
	return NewAssignmentExpression(AssignmentAssign, target, value)
}

func AssignOp(op AssignmentOperator, target AssignmentTarget, value Expression) *AssignmentExpression {
	return NewAssignmentExpression(op, target, value)
}

func Block(stmts ...Statement) *BlockExpression {
	return NewBlockExpression(stmts)
}

func If(condition Expression, then *BlockExpression, otherwise *BlockExpression) *IfExpression {
	return NewIfExpression(condition, then, otherwise)
}

// Statement helpers.

func Let(name string, value Expression) *VariableDeclaration {
	return NewVariableDeclaration(ID(name), false, nil, value)
}

func Var(name string, value Expression) *VariableDeclaration {
	return NewVariableDeclaration(ID(name), true, nil, value)
}

func TypedVar(name string, typeName string, mutable bool, value Expression) *VariableDeclaration {
	return NewVariableDeclaration(ID(name), mutable, ID(typeName), value)
}

func Ret(value Expression) *ReturnStatement {
	return NewReturnStatement(value)
}

func Halt(format string, args ...Expression) *HaltStatement {
	return NewHaltStatement(format, args)
}

func Role(role string, target string) *RoleStatement {
	return NewRoleStatement(role, ID(target))
}

// Definition helpers.

func Param(name string) *FunctionParameter {
	return NewFunctionParameter(ID(name), ParamAlias, nil)
}

func CopyParam(name string) *FunctionParameter {
	return NewFunctionParameter(ID(name), ParamCopy, nil)
}

func VariadicParam(name string) *FunctionParameter {
	return NewFunctionParameter(ID(name), ParamVariadic, nil)
}

func TypedParam(name string, typeName string) *FunctionParameter {
	return NewFunctionParameter(ID(name), ParamAlias, ID(typeName))
}

func Fn(name string, params []*FunctionParameter, body ...Statement) *FunctionDefinition {
	return NewFunctionDefinition(ID(name), params, Block(body...), false, nil)
}

func Method(name string, params []*FunctionParameter, body ...Statement) *FunctionDefinition {
	return NewFunctionDefinition(ID(name), params, Block(body...), true, nil)
}

func Field(name string) *StructFieldDefinition {
	return NewStructFieldDefinition(ID(name), nil)
}

func Struct(name string, fields []*StructFieldDefinition, methods ...*FunctionDefinition) *StructDefinition {
	return NewStructDefinition(ID(name), fields, methods, nil)
}

func TraitFn(name string, hasReceiver bool, params ...*FunctionParameter) *TraitMethod {
	return NewTraitMethod(ID(name), params, hasReceiver, nil)
}

func TraitDefault(name string, hasReceiver bool, params []*FunctionParameter, body ...Statement) *TraitMethod {
	return NewTraitMethod(ID(name), params, hasReceiver, Block(body...))
}

func Trait(name string, methods ...*TraitMethod) *TraitDefinition {
	return NewTraitDefinition(ID(name), methods)
}

func Impl(traitName, targetType string, methods ...*FunctionDefinition) *ImplementationDefinition {
	return NewImplementationDefinition(ID(traitName), ID(targetType), methods)
}

func Extern(name string, returnKind string, params ...string) *ExternFunctionDefinition {
	return NewExternFunctionDefinition(ID(name), params, returnKind, nil)
}

func Mod(body ...Statement) *Module {
	return NewModule("", body)
}

// WithRoles tags a definition with reserved roles and returns it.
func WithRoles[T interface{ *FunctionDefinition | *StructDefinition | *ExternFunctionDefinition }](def T, roles ...string) T {
	switch d := any(def).(type) {
	case *FunctionDefinition:
		d.Roles = append(d.Roles, roles...)
	case *StructDefinition:
		d.Roles = append(d.Roles, roles...)
	case *ExternFunctionDefinition:
		d.Roles = append(d.Roles, roles...)
	}
	return def
}
