package migrate

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pieczasz-labs/qb/dialect"
	"github.com/pieczasz-labs/qb/model"
	"github.com/pieczasz-labs/qb/plan"
	"github.com/pieczasz-labs/qb/schema"
)

// NoChangesSQL is the sentinel rendered when a generate run finds no
// pending operations, so callers can distinguish "ran, nothing to do" from
// an empty string meaning "not yet generated."
const NoChangesSQL = "-- no changes"

// Config are the generate() options (§4.7): dialect selection and whether
// to treat the prior plan as absent (a "full reset" migration).
type Config struct {
	WorkspaceRoot string
	Dialect       dialect.Type
	Full          bool
}

// Result is the generate() return value.
type Result struct {
	HasChanges bool
	SQL        string
	Plan       *plan.MigrationPlan
}

// Generator orchestrates C1-C7 into a single generate() call: load models,
// normalize, build the schema graph, compile the current plan, diff against
// the persisted snapshot (or nil when Full is set), render through the
// dialect driver, and persist the new snapshot on any non-empty output.
type Generator struct {
	Loader model.Loader
	Logger *zap.Logger
	Now    func() time.Time
}

// NewGenerator constructs a Generator. logger may be nil (logging becomes a
// no-op via zap.NewNop()); now defaults to time.Now when nil, letting tests
// supply a deterministic clock.
func NewGenerator(loader model.Loader, logger *zap.Logger, now func() time.Time) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Generator{Loader: loader, Logger: logger, Now: now}
}

// Generate runs the full pipeline described in §4.7.
func (g *Generator) Generate(modelsDir string, cfg Config) (*Result, error) {
	raws, err := g.Loader.LoadModels(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("migrate: load models from %s: %w", modelsDir, err)
	}

	models := make(map[string]*model.Model, len(raws))
	for name, raw := range raws {
		m, err := model.Normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("migrate: normalize model %q: %w", name, err)
		}
		models[name] = m
	}
	meta := schema.Build(models)

	current := plan.Compile(meta, string(cfg.Dialect))

	var prior *plan.MigrationPlan
	snapshotPath := SnapshotPath(cfg.WorkspaceRoot, string(cfg.Dialect))
	if !cfg.Full {
		snap, err := ReadSnapshot(snapshotPath, g.Logger)
		if err != nil {
			return nil, fmt.Errorf("migrate: read snapshot: %w", err)
		}
		if snap != nil {
			prior = snap.Plan
		}
	}

	ops := Diff(prior, current)
	if len(ops) == 0 {
		g.Logger.Info("migrate: no changes detected", zap.String("dialect", string(cfg.Dialect)))
		return &Result{HasChanges: false, SQL: NoChangesSQL, Plan: current}, nil
	}

	driver, err := dialect.Get(cfg.Dialect)
	if err != nil {
		return nil, fmt.Errorf("migrate: resolve dialect driver: %w", err)
	}

	rendered, err := Render(driver, ops)
	if err != nil {
		return nil, fmt.Errorf("migrate: render operations: %w", err)
	}

	for _, op := range ops {
		if op.Destructive {
			g.Logger.Warn("migrate: destructive operation", zap.String("kind", string(op.Kind)), zap.String("table", op.Table))
		}
	}

	if err := WriteSnapshot(snapshotPath, NewSnapshot(current, g.Now())); err != nil {
		return nil, fmt.Errorf("migrate: write snapshot: %w", err)
	}

	return &Result{HasChanges: true, SQL: rendered, Plan: current}, nil
}

// Render renders an ordered operation list through a dialect driver into a
// single newline-joined SQL script. Foreign key and index operations carry
// their own rendering beyond what the driver's plain CreateTable emits.
func Render(d dialect.Driver, ops []Operation) (string, error) {
	var stmts []string
	for _, op := range ops {
		stmt, err := renderOperation(d, op)
		if err != nil {
			return "", err
		}
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return strings.Join(stmts, "\n"), nil
}

func renderOperation(d dialect.Driver, op Operation) (string, error) {
	switch op.Kind {
	case KindCreateTable:
		if op.TablePlan == nil {
			return "", fmt.Errorf("migrate: CREATE_TABLE operation on %q missing table plan", op.Table)
		}
		enumStmts := enumTypeStatements(d, *op.TablePlan)
		if len(enumStmts) == 0 {
			return d.CreateTable(*op.TablePlan), nil
		}
		return strings.Join(append(enumStmts, d.CreateTable(*op.TablePlan)), "\n"), nil
	case KindDropTable:
		return d.DropTable(op.Table), nil
	case KindAddColumn:
		return d.AddColumn(op.Table, *op.Column), nil
	case KindModifyColumn:
		return d.ModifyColumn(op.Table, *op.Column), nil
	case KindDropColumn:
		return d.DropColumn(op.Table, op.Column.Name), nil
	case KindAddIndex:
		return d.CreateIndex(op.Table, *op.Index), nil
	case KindDropIndex:
		return d.DropIndex(op.Table, op.Index.Name), nil
	case KindAddFK:
		return d.AddForeignKey(op.Table, op.ForeignKeyColumn, op.ForeignKeyTable, op.ForeignKeyColRef), nil
	case KindDropFK:
		return d.DropForeignKey(op.Table, ForeignKeyConstraintName(op.Table, op.ForeignKeyColumn)), nil
	case KindWarning:
		return "-- " + op.Message, nil
	default:
		return "", fmt.Errorf("migrate: unknown operation kind %q", op.Kind)
	}
}

// ForeignKeyConstraintName names the constraint a KindAddFK/KindDropFK
// operation refers to, matching plan.ForeignKeyName's convention.
func ForeignKeyConstraintName(table, column string) string {
	return plan.ForeignKeyName(table, column)
}

func enumTypeStatements(d dialect.Driver, t plan.TablePlan) []string {
	var stmts []string
	for _, col := range t.Columns {
		if col.Type != plan.KindEnum || len(col.EnumValues) == 0 {
			continue
		}
		if stmt := d.CreateEnumType(enumTypeName(t.Table, col.Name), col.EnumValues); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	sort.Strings(stmts)
	return stmts
}

func enumTypeName(table, column string) string {
	return fmt.Sprintf("%s_%s_enum", table, column)
}
