package ast

type NodeType string

const (
	NodeIdentifier               NodeType = "Identifier"
	NodeNumberLiteral            NodeType = "NumberLiteral"
	NodeStringLiteral            NodeType = "StringLiteral"
	NodeStructFieldInitializer   NodeType = "StructFieldInitializer"
	NodeStructLiteral            NodeType = "StructLiteral"
	NodeMemberAccessExpression   NodeType = "MemberAccessExpression"
	NodeIndexExpression          NodeType = "IndexExpression"
	NodeFunctionCall             NodeType = "FunctionCall"
	NodeBinaryExpression         NodeType = "BinaryExpression"
	NodeReferenceExpression      NodeType = "ReferenceExpression"
	NodeDereferenceExpression    NodeType = "DereferenceExpression"
	NodeAssignmentExpression     NodeType = "AssignmentExpression"
	NodeBlockExpression          NodeType = "BlockExpression"
	NodeIfExpression             NodeType = "IfExpression"
	NodeVariableDeclaration      NodeType = "VariableDeclaration"
	NodeReturnStatement          NodeType = "ReturnStatement"
	NodeHaltStatement            NodeType = "HaltStatement"
	NodeRoleStatement            NodeType = "RoleStatement"
	NodeFunctionParameter        NodeType = "FunctionParameter"
	NodeFunctionDefinition       NodeType = "FunctionDefinition"
	NodeStructFieldDefinition    NodeType = "StructFieldDefinition"
	NodeStructDefinition         NodeType = "StructDefinition"
	NodeTraitMethod              NodeType = "TraitMethod"
	NodeTraitDefinition          NodeType = "TraitDefinition"
	NodeImplementationDefinition NodeType = "ImplementationDefinition"
	NodeExternFunctionDefinition NodeType = "ExternFunctionDefinition"
	NodeModule                   NodeType = "Module"
)

type Node interface {
	NodeType() NodeType
	Span() Span
	isNode()
}

type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type Span struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

type nodeImpl struct {
	Type NodeType `json:"type"`
	span Span
}

func newNodeImpl(kind NodeType) nodeImpl {
	return nodeImpl{Type: kind}
}

func (n nodeImpl) NodeType() NodeType { return n.Type }
func (n nodeImpl) Span() Span         { return n.span }
func (nodeImpl) isNode()              {}
func (n *nodeImpl) setSpan(span Span) { n.span = span }

// SetSpan annotates the node with the provided span.
func SetSpan(node Node, span Span) {
	if node == nil {
		return
	}
	if setter, ok := node.(interface{ setSpan(Span) }); ok {
		setter.setSpan(span)
	}
}

// Marker interfaces.

type Expression interface {
	Node
	expressionNode()
	statementNode()
}

type expressionMarker struct{}

func (expressionMarker) expressionNode() {}

type Statement interface {
	Node
	statementNode()
}

type statementMarker struct{}

func (statementMarker) statementNode() {}

// AssignmentTarget marks the expressions that denote a storage location.
type AssignmentTarget interface {
	Expression
	assignmentTargetNode()
}

type assignmentTargetMarker struct{}

func (assignmentTargetMarker) assignmentTargetNode() {}

// Identifier

type Identifier struct {
	nodeImpl
	expressionMarker
	statementMarker
	assignmentTargetMarker

	Name string `json:"name"`
}

func NewIdentifier(name string) *Identifier {
	return &Identifier{nodeImpl: newNodeImpl(NodeIdentifier), Name: name}
}

// Literals

type NumberLiteral struct {
	nodeImpl
	expressionMarker
	statementMarker

	Value float64 `json:"value"`
}

func NewNumberLiteral(value float64) *NumberLiteral {
	return &NumberLiteral{nodeImpl: newNodeImpl(NodeNumberLiteral), Value: value}
}

type StringLiteral struct {
	nodeImpl
	expressionMarker
	statementMarker

	Value string `json:"value"`
}

func NewStringLiteral(value string) *StringLiteral {
	return &StringLiteral{nodeImpl: newNodeImpl(NodeStringLiteral), Value: value}
}

type StructFieldInitializer struct {
	nodeImpl

	Name  *Identifier `json:"name"`
	Value Expression  `json:"value"`
}

func NewStructFieldInitializer(name *Identifier, value Expression) *StructFieldInitializer {
	return &StructFieldInitializer{nodeImpl: newNodeImpl(NodeStructFieldInitializer), Name: name, Value: value}
}

type StructLiteral struct {
	nodeImpl
	expressionMarker
	statementMarker

	StructType *Identifier               `json:"structType"`
	Fields     []*StructFieldInitializer `json:"fields"`
}

func NewStructLiteral(structType *Identifier, fields []*StructFieldInitializer) *StructLiteral {
	return &StructLiteral{nodeImpl: newNodeImpl(NodeStructLiteral), StructType: structType, Fields: fields}
}

// Access

type MemberAccessExpression struct {
	nodeImpl
	expressionMarker
	statementMarker
	assignmentTargetMarker

	Object Expression  `json:"object"`
	Member *Identifier `json:"member"`
}

func NewMemberAccessExpression(object Expression, member *Identifier) *MemberAccessExpression {
	return &MemberAccessExpression{nodeImpl: newNodeImpl(NodeMemberAccessExpression), Object: object, Member: member}
}

type IndexExpression struct {
	nodeImpl
	expressionMarker
	statementMarker
	assignmentTargetMarker

	Object Expression `json:"object"`
	Index  Expression `json:"index"`
}

func NewIndexExpression(object, index Expression) *IndexExpression {
	return &IndexExpression{nodeImpl: newNodeImpl(NodeIndexExpression), Object: object, Index: index}
}

// Calls and operators

type FunctionCall struct {
	nodeImpl
	expressionMarker
	statementMarker

	Callee    Expression   `json:"callee"`
	Arguments []Expression `json:"arguments"`
}

func NewFunctionCall(callee Expression, args []Expression) *FunctionCall {
	return &FunctionCall{nodeImpl: newNodeImpl(NodeFunctionCall), Callee: callee, Arguments: args}
}

type BinaryExpression struct {
	nodeImpl
	expressionMarker
	statementMarker

	Operator string     `json:"operator"`
	Left     Expression `json:"left"`
	Right    Expression `json:"right"`
}

func NewBinaryExpression(operator string, left, right Expression) *BinaryExpression {
	return &BinaryExpression{nodeImpl: newNodeImpl(NodeBinaryExpression), Operator: operator, Left: left, Right: right}
}

// ReferenceExpression takes a reference to a storage location (`&x`).
type ReferenceExpression struct {
	nodeImpl
	expressionMarker
	statementMarker

	Target AssignmentTarget `json:"target"`
}

func NewReferenceExpression(target AssignmentTarget) *ReferenceExpression {
	return &ReferenceExpression{nodeImpl: newNodeImpl(NodeReferenceExpression), Target: target}
}

// DereferenceExpression reads or writes through a reference (`*r`).
type DereferenceExpression struct {
	nodeImpl
	expressionMarker
	statementMarker
	assignmentTargetMarker

	Reference Expression `json:"reference"`
}

func NewDereferenceExpression(reference Expression) *DereferenceExpression {
	return &DereferenceExpression{nodeImpl: newNodeImpl(NodeDereferenceExpression), Reference: reference}
}

type AssignmentOperator string

const (
	AssignmentAssign AssignmentOperator = "="
	AssignmentAdd    AssignmentOperator = "+="
	AssignmentSub    AssignmentOperator = "-="
	AssignmentMul    AssignmentOperator = "*="
	AssignmentDiv    AssignmentOperator = "/="
)

// BinaryOperator returns the arithmetic operator of a compound assignment.
func (op AssignmentOperator) BinaryOperator() (string, bool) {
	switch op {
	case AssignmentAdd:
		return "+", true
	case AssignmentSub:
		return "-", true
	case AssignmentMul:
		return "*", true
	case AssignmentDiv:
		return "/", true
	default:
		return "", false
	}
}

type AssignmentExpression struct {
	nodeImpl
	expressionMarker
	statementMarker

	Operator AssignmentOperator `json:"operator"`
	Left     AssignmentTarget   `json:"left"`
	Right    Expression         `json:"right"`
}

func NewAssignmentExpression(operator AssignmentOperator, left AssignmentTarget, right Expression) *AssignmentExpression {
	return &AssignmentExpression{nodeImpl: newNodeImpl(NodeAssignmentExpression), Operator: operator, Left: left, Right: right}
}

// Blocks and control flow

type BlockExpression struct {
	nodeImpl
	expressionMarker
	statementMarker

	Body []Statement `json:"body"`
}

func NewBlockExpression(body []Statement) *BlockExpression {
	return &BlockExpression{nodeImpl: newNodeImpl(NodeBlockExpression), Body: body}
}

type IfExpression struct {
	nodeImpl
	expressionMarker
	statementMarker

	Condition Expression       `json:"condition"`
	Then      *BlockExpression `json:"then"`
	Else      *BlockExpression `json:"else,omitempty"`
}

func NewIfExpression(condition Expression, then, otherwise *BlockExpression) *IfExpression {
	return &IfExpression{nodeImpl: newNodeImpl(NodeIfExpression), Condition: condition, Then: then, Else: otherwise}
}

// Statements

type VariableDeclaration struct {
	nodeImpl
	statementMarker

	Name     *Identifier `json:"name"`
	Mutable  bool        `json:"mutable"`
	TypeName *Identifier `json:"typeName,omitempty"`
	Value    Expression  `json:"value"`
}

func NewVariableDeclaration(name *Identifier, mutable bool, typeName *Identifier, value Expression) *VariableDeclaration {
	return &VariableDeclaration{nodeImpl: newNodeImpl(NodeVariableDeclaration), Name: name, Mutable: mutable, TypeName: typeName, Value: value}
}

type ReturnStatement struct {
	nodeImpl
	statementMarker

	Argument Expression `json:"argument,omitempty"`
}

func NewReturnStatement(argument Expression) *ReturnStatement {
	return &ReturnStatement{nodeImpl: newNodeImpl(NodeReturnStatement), Argument: argument}
}

// HaltStatement terminates the program with a formatted message.
type HaltStatement struct {
	nodeImpl
	statementMarker

	Format    string       `json:"format"`
	Arguments []Expression `json:"arguments"`
}

func NewHaltStatement(format string, args []Expression) *HaltStatement {
	return &HaltStatement{nodeImpl: newNodeImpl(NodeHaltStatement), Format: format, Arguments: args}
}

// RoleStatement tags (or retags) the named declaration with a reserved role.
type RoleStatement struct {
	nodeImpl
	statementMarker

	Role   string      `json:"role"`
	Target *Identifier `json:"target"`
}

func NewRoleStatement(role string, target *Identifier) *RoleStatement {
	return &RoleStatement{nodeImpl: newNodeImpl(NodeRoleStatement), Role: role, Target: target}
}

// Definitions

type ParameterMode string

const (
	ParamAlias    ParameterMode = "alias"
	ParamCopy     ParameterMode = "copy"
	ParamVariadic ParameterMode = "variadic"
)

type FunctionParameter struct {
	nodeImpl

	Name     *Identifier   `json:"name"`
	Mode     ParameterMode `json:"mode"`
	TypeName *Identifier   `json:"typeName,omitempty"`
}

func NewFunctionParameter(name *Identifier, mode ParameterMode, typeName *Identifier) *FunctionParameter {
	if mode == "" {
		mode = ParamAlias
	}
	return &FunctionParameter{nodeImpl: newNodeImpl(NodeFunctionParameter), Name: name, Mode: mode, TypeName: typeName}
}

type FunctionDefinition struct {
	nodeImpl
	statementMarker

	ID          *Identifier          `json:"id"`
	Params      []*FunctionParameter `json:"params"`
	Body        *BlockExpression     `json:"body"`
	HasReceiver bool                 `json:"hasReceiver"`
	Roles       []string             `json:"roles,omitempty"`
}

func NewFunctionDefinition(id *Identifier, params []*FunctionParameter, body *BlockExpression, hasReceiver bool, roles []string) *FunctionDefinition {
	return &FunctionDefinition{
		nodeImpl:    newNodeImpl(NodeFunctionDefinition),
		ID:          id,
		Params:      params,
		Body:        body,
		HasReceiver: hasReceiver,
		Roles:       roles,
	}
}

type StructFieldDefinition struct {
	nodeImpl

	Name     *Identifier `json:"name"`
	TypeName *Identifier `json:"typeName,omitempty"`
}

func NewStructFieldDefinition(name *Identifier, typeName *Identifier) *StructFieldDefinition {
	return &StructFieldDefinition{nodeImpl: newNodeImpl(NodeStructFieldDefinition), Name: name, TypeName: typeName}
}

// StructDefinition declares a struct type and its inherent methods.
type StructDefinition struct {
	nodeImpl
	statementMarker

	ID      *Identifier              `json:"id"`
	Fields  []*StructFieldDefinition `json:"fields"`
	Methods []*FunctionDefinition    `json:"methods,omitempty"`
	Roles   []string                 `json:"roles,omitempty"`
}

func NewStructDefinition(id *Identifier, fields []*StructFieldDefinition, methods []*FunctionDefinition, roles []string) *StructDefinition {
	return &StructDefinition{nodeImpl: newNodeImpl(NodeStructDefinition), ID: id, Fields: fields, Methods: methods, Roles: roles}
}

// TraitMethod is a required method signature, optionally with a default body.
type TraitMethod struct {
	nodeImpl

	ID          *Identifier          `json:"id"`
	Params      []*FunctionParameter `json:"params"`
	HasReceiver bool                 `json:"hasReceiver"`
	Default     *BlockExpression     `json:"default,omitempty"`
}

func NewTraitMethod(id *Identifier, params []*FunctionParameter, hasReceiver bool, defaultBody *BlockExpression) *TraitMethod {
	return &TraitMethod{nodeImpl: newNodeImpl(NodeTraitMethod), ID: id, Params: params, HasReceiver: hasReceiver, Default: defaultBody}
}

type TraitDefinition struct {
	nodeImpl
	statementMarker

	ID      *Identifier    `json:"id"`
	Methods []*TraitMethod `json:"methods"`
}

func NewTraitDefinition(id *Identifier, methods []*TraitMethod) *TraitDefinition {
	return &TraitDefinition{nodeImpl: newNodeImpl(NodeTraitDefinition), ID: id, Methods: methods}
}

type ImplementationDefinition struct {
	nodeImpl
	statementMarker

	TraitName  *Identifier           `json:"traitName"`
	TargetType *Identifier           `json:"targetType"`
	Methods    []*FunctionDefinition `json:"methods"`
}

func NewImplementationDefinition(traitName, targetType *Identifier, methods []*FunctionDefinition) *ImplementationDefinition {
	return &ImplementationDefinition{nodeImpl: newNodeImpl(NodeImplementationDefinition), TraitName: traitName, TargetType: targetType, Methods: methods}
}

// ExternFunctionDefinition declares a host function with fixed native kinds.
type ExternFunctionDefinition struct {
	nodeImpl
	statementMarker

	ID         *Identifier `json:"id"`
	Params     []string    `json:"params"`
	ReturnKind string      `json:"returnKind"`
	Roles      []string    `json:"roles,omitempty"`
}

func NewExternFunctionDefinition(id *Identifier, params []string, returnKind string, roles []string) *ExternFunctionDefinition {
	return &ExternFunctionDefinition{nodeImpl: newNodeImpl(NodeExternFunctionDefinition), ID: id, Params: params, ReturnKind: returnKind, Roles: roles}
}

// Module is a list of top-level declarations.
type Module struct {
	nodeImpl

	Name string      `json:"name,omitempty"`
	Body []Statement `json:"body"`
}

func NewModule(name string, body []Statement) *Module {
	return &Module{nodeImpl: newNodeImpl(NodeModule), Name: name, Body: body}
}
