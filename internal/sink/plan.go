// Package sink is the bulk-load sink: per-table COPY staging buffers,
// watermark-triggered flush, and the import/update commit protocols that
// turn staged rows into live PostgreSQL tables.
package sink

import "fmt"

// OperationKind discriminates a commit-plan step. Each kind carries
// enough structure to be logged and executed without re-parsing SQL.
type OperationKind int

const (
	OpCreateIndex OperationKind = iota
	OpCluster
	OpAnalyze
	OpRename
	OpDeleteWhere
	OpCopyFlush
)

func (k OperationKind) String() string {
	switch k {
	case OpCreateIndex:
		return "create_index"
	case OpCluster:
		return "cluster"
	case OpAnalyze:
		return "analyze"
	case OpRename:
		return "rename"
	case OpDeleteWhere:
		return "delete_where"
	case OpCopyFlush:
		return "copy_flush"
	default:
		return fmt.Sprintf("operation(%d)", int(k))
	}
}

// Operation is a single commit-plan step, specific to the sink's
// bulk-load protocol rather than generic SQL text.
type Operation struct {
	Kind  OperationKind
	Table string
	// SQL is the statement to execute for kinds that are a single DDL/DML
	// statement (CreateIndex, Cluster, Analyze, Rename, DeleteWhere). For
	// CopyFlush the staging buffer is executed instead of SQL.
	SQL string
	// Args are the positional parameters for DeleteWhere.
	Args []any
}

// Plan is the ordered list of Operations executed at the end of a run. On
// any failure the remaining plan is aborted without executing — staging
// tables are left in place for operator inspection.
type Plan struct {
	Operations []Operation
}

func (p *Plan) add(op Operation) {
	p.Operations = append(p.Operations, op)
}

func (p *Plan) AddCreateIndex(table, sql string) {
	p.add(Operation{Kind: OpCreateIndex, Table: table, SQL: sql})
}

func (p *Plan) AddCluster(table, sql string) {
	p.add(Operation{Kind: OpCluster, Table: table, SQL: sql})
}

func (p *Plan) AddAnalyze(table, sql string) {
	p.add(Operation{Kind: OpAnalyze, Table: table, SQL: sql})
}

func (p *Plan) AddRename(table, sql string) {
	p.add(Operation{Kind: OpRename, Table: table, SQL: sql})
}

func (p *Plan) AddDeleteWhere(table, sql string, args ...any) {
	p.add(Operation{Kind: OpDeleteWhere, Table: table, SQL: sql, Args: args})
}
