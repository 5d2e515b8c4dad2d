package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// OperationKind identifies one of the table-level changes the migration
// driver can emit (§4.11).
type OperationKind string

const (
	OpCreateTable          OperationKind = "CREATE_TABLE"
	OpDeleteTable          OperationKind = "DELETE_TABLE"
	OpAddGSI               OperationKind = "ADD_GSI"
	OpDeleteGSI            OperationKind = "DELETE_GSI"
	OpUpdateGSIThroughput  OperationKind = "UPDATE_GSI_THROUGHPUT"
	OpUpdateTTL            OperationKind = "UPDATE_TTL"
	OpUpdateBillingMode    OperationKind = "UPDATE_BILLING_MODE"
	OpEnableStream         OperationKind = "ENABLE_STREAM"
	OpDisableStream        OperationKind = "DISABLE_STREAM"
	OpWarnKeySchemaChanged OperationKind = "WARN_KEY_SCHEMA_CHANGED"
	OpWarnDeletionProtectionChanged OperationKind = "WARN_DELETION_PROTECTION_CHANGED"
)

// KeyDefinition is one partition/sort key attribute.
type KeyDefinition struct {
	Name string
	Type types.ScalarAttributeType
	Role types.KeyType // HASH or RANGE
}

// GSIDefinition is a canonical global secondary index definition.
type GSIDefinition struct {
	Name           string
	PartitionKey   KeyDefinition
	SortKey        *KeyDefinition
	ReadCapacity   int64
	WriteCapacity  int64
}

// TableDefinition is the canonical, dialect-agnostic shape of a DynamoDB
// table this driver can diff and apply (§4.11).
type TableDefinition struct {
	Name         string
	PartitionKey KeyDefinition
	SortKey      *KeyDefinition
	GSIs         []GSIDefinition
	BillingMode  types.BillingMode
	TTLAttribute string
	StreamEnabled bool
	StreamViewType types.StreamViewType
	DeletionProtection bool
}

// Operation is one emitted migration step.
type Operation struct {
	Kind      OperationKind
	TableName string
	Table     *TableDefinition
	GSI       *GSIDefinition
	GSIName   string
	TTLAttribute string
	TTLEnabled   bool
	BillingMode  types.BillingMode
	StreamViewType types.StreamViewType
	Message   string
}

// Diff compares a live table definition (nil if the table doesn't exist)
// against a desired definition and returns the ordered operations required
// to reconcile them (§4.11).
func Diff(prior *TableDefinition, desired *TableDefinition) []Operation {
	if prior == nil {
		return []Operation{{Kind: OpCreateTable, TableName: desired.Name, Table: desired}}
	}
	if desired == nil {
		return []Operation{{Kind: OpDeleteTable, TableName: prior.Name}}
	}

	var ops []Operation

	if !keyDefEqual(prior.PartitionKey, desired.PartitionKey) || !sortKeyEqual(prior.SortKey, desired.SortKey) {
		ops = append(ops, Operation{
			Kind:      OpWarnKeySchemaChanged,
			TableName: desired.Name,
			Message:   fmt.Sprintf("key schema for table %q changed; this driver does not auto-recreate tables", desired.Name),
		})
	}

	if prior.DeletionProtection != desired.DeletionProtection {
		ops = append(ops, Operation{
			Kind:      OpWarnDeletionProtectionChanged,
			TableName: desired.Name,
			Message:   fmt.Sprintf("deletion protection for table %q changed (%t -> %t); apply this out of band", desired.Name, prior.DeletionProtection, desired.DeletionProtection),
		})
	}

	priorGSIs := gsisByName(prior.GSIs)
	desiredGSIs := gsisByName(desired.GSIs)

	for _, name := range sortedGSINames(desiredGSIs) {
		if _, ok := priorGSIs[name]; !ok {
			gsi := desiredGSIs[name]
			ops = append(ops, Operation{Kind: OpAddGSI, TableName: desired.Name, GSI: &gsi, GSIName: name})
		}
	}
	for _, name := range sortedGSINames(priorGSIs) {
		if _, ok := desiredGSIs[name]; !ok {
			ops = append(ops, Operation{Kind: OpDeleteGSI, TableName: desired.Name, GSIName: name})
		}
	}
	for _, name := range sortedGSINames(desiredGSIs) {
		pg, ok := priorGSIs[name]
		if !ok {
			continue
		}
		dg := desiredGSIs[name]
		if pg.ReadCapacity != dg.ReadCapacity || pg.WriteCapacity != dg.WriteCapacity {
			gsi := dg
			ops = append(ops, Operation{Kind: OpUpdateGSIThroughput, TableName: desired.Name, GSI: &gsi, GSIName: name})
		}
	}

	if prior.BillingMode != desired.BillingMode {
		ops = append(ops, Operation{Kind: OpUpdateBillingMode, TableName: desired.Name, BillingMode: desired.BillingMode})
	}

	if prior.TTLAttribute != desired.TTLAttribute {
		ops = append(ops, Operation{
			Kind:         OpUpdateTTL,
			TableName:    desired.Name,
			TTLAttribute: desired.TTLAttribute,
			TTLEnabled:   desired.TTLAttribute != "",
		})
	}

	if desired.StreamEnabled && !prior.StreamEnabled {
		ops = append(ops, Operation{Kind: OpEnableStream, TableName: desired.Name, StreamViewType: desired.StreamViewType})
	} else if !desired.StreamEnabled && prior.StreamEnabled {
		ops = append(ops, Operation{Kind: OpDisableStream, TableName: desired.Name})
	}

	return ops
}

func keyDefEqual(a, b KeyDefinition) bool {
	return a.Name == b.Name && a.Type == b.Type
}

func sortKeyEqual(a, b *KeyDefinition) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return keyDefEqual(*a, *b)
}

func gsisByName(gsis []GSIDefinition) map[string]GSIDefinition {
	out := make(map[string]GSIDefinition, len(gsis))
	for _, g := range gsis {
		out[g.Name] = g
	}
	return out
}

func sortedGSINames(m map[string]GSIDefinition) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DynamoDBClient is the subset of *dynamodb.Client this driver calls
// through; the signed-HTTP transport itself (§6) lives below this
// interface, inside whatever concrete client the caller constructs.
type DynamoDBClient interface {
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DeleteTable(ctx context.Context, in *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	UpdateTable(ctx context.Context, in *dynamodb.UpdateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTableOutput, error)
	UpdateTimeToLive(ctx context.Context, in *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// pollCaps are the wait-for-active limits from §4.11.
const (
	tablePollCap      = 60
	tablePollInterval = 2 * time.Second
	gsiPollCap        = 120
	gsiPollInterval   = 5 * time.Second
)

// Driver executes a reconciliation plan against a live DynamoDB account.
type Driver struct {
	Client        DynamoDBClient
	ControlTable  string
	DryRun        bool
	Logger        *zap.Logger
	Sleep         func(ctx context.Context, d time.Duration) error
	Now           func() time.Time
}

// NewDriver constructs a Driver with the documented defaults (control table
// `_qb_migrations`, real-time sleep, real-time clock).
func NewDriver(client DynamoDBClient, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		Client:       client,
		ControlTable: "_qb_migrations",
		Logger:       logger,
		Sleep:        defaultSleep,
		Now:          time.Now,
	}
}

func defaultSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Apply executes every operation in ops in order against the live table,
// dispatching each to its corresponding API call (§4.11). Dry-run mode logs
// each op and skips execution entirely. On full success, a version record
// is written to the control table; on any failure, Apply returns the error
// immediately without recording a version (the caller's snapshot, if any,
// is therefore left untouched).
func (d *Driver) Apply(ctx context.Context, tableName string, ops []Operation, definition *TableDefinition) error {
	for _, op := range ops {
		if d.DryRun {
			d.Logger.Info("dynamo: dry-run, skipping operation", zap.String("kind", string(op.Kind)), zap.String("table", op.TableName))
			continue
		}
		if err := d.applyOne(ctx, op); err != nil {
			return fmt.Errorf("dynamo: applying %s to %q: %w", op.Kind, op.TableName, err)
		}
	}
	if d.DryRun {
		return nil
	}
	return d.recordVersion(ctx, tableName, definition)
}

func (d *Driver) applyOne(ctx context.Context, op Operation) error {
	switch op.Kind {
	case OpWarnKeySchemaChanged:
		d.Logger.Warn("dynamo: key schema change detected, not auto-applying", zap.String("table", op.TableName), zap.String("message", op.Message))
		return nil
	case OpWarnDeletionProtectionChanged:
		d.Logger.Warn("dynamo: deletion protection change detected, not auto-applying", zap.String("table", op.TableName), zap.String("message", op.Message))
		return nil
	case OpCreateTable:
		return d.createTable(ctx, op.Table)
	case OpDeleteTable:
		return d.deleteTable(ctx, op.TableName)
	case OpAddGSI:
		return d.addGSI(ctx, op.TableName, *op.GSI)
	case OpDeleteGSI:
		return d.deleteGSI(ctx, op.TableName, op.GSIName)
	case OpUpdateGSIThroughput:
		return d.updateGSIThroughput(ctx, op.TableName, *op.GSI)
	case OpUpdateTTL:
		return d.updateTTL(ctx, op.TableName, op.TTLAttribute, op.TTLEnabled)
	case OpUpdateBillingMode:
		return d.updateBillingMode(ctx, op.TableName, op.BillingMode)
	case OpEnableStream:
		return d.setStream(ctx, op.TableName, true, op.StreamViewType)
	case OpDisableStream:
		return d.setStream(ctx, op.TableName, false, "")
	default:
		return fmt.Errorf("dynamo: unknown operation kind %q", op.Kind)
	}
}

func (d *Driver) createTable(ctx context.Context, def *TableDefinition) error {
	input := &dynamodb.CreateTableInput{
		TableName:            ptr(def.Name),
		KeySchema:            keySchema(def.PartitionKey, def.SortKey),
		AttributeDefinitions: attributeDefinitions(def),
		BillingMode:          def.BillingMode,
	}
	for _, gsi := range def.GSIs {
		input.GlobalSecondaryIndexes = append(input.GlobalSecondaryIndexes, gsiInput(gsi))
	}
	if def.StreamEnabled {
		input.StreamSpecification = &types.StreamSpecification{StreamEnabled: ptr(true), StreamViewType: def.StreamViewType}
	}
	if _, err := d.Client.CreateTable(ctx, input); err != nil {
		return wrapDynamoErr("CreateTable", err)
	}
	if err := d.waitForTableActive(ctx, def.Name); err != nil {
		return err
	}
	if def.TTLAttribute != "" {
		return d.updateTTL(ctx, def.Name, def.TTLAttribute, true)
	}
	return nil
}

func (d *Driver) deleteTable(ctx context.Context, tableName string) error {
	_, err := d.Client.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: ptr(tableName)})
	if err != nil {
		return wrapDynamoErr("DeleteTable", err)
	}
	return nil
}

func (d *Driver) addGSI(ctx context.Context, tableName string, gsi GSIDefinition) error {
	attrs := []types.AttributeDefinition{{AttributeName: ptr(gsi.PartitionKey.Name), AttributeType: gsi.PartitionKey.Type}}
	if gsi.SortKey != nil {
		attrs = append(attrs, types.AttributeDefinition{AttributeName: ptr(gsi.SortKey.Name), AttributeType: gsi.SortKey.Type})
	}
	input := &dynamodb.UpdateTableInput{
		TableName:            ptr(tableName),
		AttributeDefinitions: attrs,
		GlobalSecondaryIndexUpdates: []types.GlobalSecondaryIndexUpdate{
			{Create: &types.CreateGlobalSecondaryIndexAction{
				IndexName:             ptr(gsi.Name),
				KeySchema:             gsiInput(gsi).KeySchema,
				Projection:            &types.Projection{ProjectionType: types.ProjectionTypeAll},
				ProvisionedThroughput: gsiThroughput(gsi),
			}},
		},
	}
	if _, err := d.Client.UpdateTable(ctx, input); err != nil {
		return wrapDynamoErr("UpdateTable(AddGSI)", err)
	}
	return d.waitForGSIActive(ctx, tableName, gsi.Name)
}

func (d *Driver) deleteGSI(ctx context.Context, tableName, gsiName string) error {
	input := &dynamodb.UpdateTableInput{
		TableName: ptr(tableName),
		GlobalSecondaryIndexUpdates: []types.GlobalSecondaryIndexUpdate{
			{Delete: &types.DeleteGlobalSecondaryIndexAction{IndexName: ptr(gsiName)}},
		},
	}
	if _, err := d.Client.UpdateTable(ctx, input); err != nil {
		return wrapDynamoErr("UpdateTable(DeleteGSI)", err)
	}
	return d.waitForTableActive(ctx, tableName)
}

func (d *Driver) updateGSIThroughput(ctx context.Context, tableName string, gsi GSIDefinition) error {
	input := &dynamodb.UpdateTableInput{
		TableName: ptr(tableName),
		GlobalSecondaryIndexUpdates: []types.GlobalSecondaryIndexUpdate{
			{Update: &types.UpdateGlobalSecondaryIndexAction{
				IndexName:             ptr(gsi.Name),
				ProvisionedThroughput: gsiThroughput(gsi),
			}},
		},
	}
	if _, err := d.Client.UpdateTable(ctx, input); err != nil {
		return wrapDynamoErr("UpdateTable(GSIThroughput)", err)
	}
	return d.waitForGSIActive(ctx, tableName, gsi.Name)
}

func (d *Driver) updateTTL(ctx context.Context, tableName, attribute string, enabled bool) error {
	if attribute == "" {
		return nil
	}
	_, err := d.Client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: ptr(tableName),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			AttributeName: ptr(attribute),
			Enabled:       ptr(enabled),
		},
	})
	if err != nil {
		return wrapDynamoErr("UpdateTimeToLive", err)
	}
	return nil
}

func (d *Driver) updateBillingMode(ctx context.Context, tableName string, mode types.BillingMode) error {
	_, err := d.Client.UpdateTable(ctx, &dynamodb.UpdateTableInput{TableName: ptr(tableName), BillingMode: mode})
	if err != nil {
		return wrapDynamoErr("UpdateTable(BillingMode)", err)
	}
	return d.waitForTableActive(ctx, tableName)
}

func (d *Driver) setStream(ctx context.Context, tableName string, enabled bool, viewType types.StreamViewType) error {
	spec := &types.StreamSpecification{StreamEnabled: ptr(enabled)}
	if enabled {
		spec.StreamViewType = viewType
	}
	_, err := d.Client.UpdateTable(ctx, &dynamodb.UpdateTableInput{TableName: ptr(tableName), StreamSpecification: spec})
	if err != nil {
		return wrapDynamoErr("UpdateTable(Stream)", err)
	}
	return d.waitForTableActive(ctx, tableName)
}

// waitForTableActive polls DescribeTable until the table status is ACTIVE,
// bounded by tablePollCap attempts at tablePollInterval spacing (§4.11).
func (d *Driver) waitForTableActive(ctx context.Context, tableName string) error {
	for attempt := 1; attempt <= tablePollCap; attempt++ {
		if err := ctx.Err(); err != nil {
			return &CancelledError{TableName: tableName}
		}
		out, err := d.Client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: ptr(tableName)})
		if err != nil {
			return wrapDynamoErr("DescribeTable", err)
		}
		if out.Table != nil && out.Table.TableStatus == types.TableStatusActive {
			return nil
		}
		if err := d.Sleep(ctx, tablePollInterval); err != nil {
			return &CancelledError{TableName: tableName}
		}
	}
	return &WaitForActiveTimeoutError{TableName: tableName, Attempts: tablePollCap}
}

// waitForGSIActive polls DescribeTable until the named GSI's status is
// ACTIVE, bounded by gsiPollCap attempts at gsiPollInterval spacing.
func (d *Driver) waitForGSIActive(ctx context.Context, tableName, gsiName string) error {
	for attempt := 1; attempt <= gsiPollCap; attempt++ {
		if err := ctx.Err(); err != nil {
			return &CancelledError{TableName: tableName}
		}
		out, err := d.Client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: ptr(tableName)})
		if err != nil {
			return wrapDynamoErr("DescribeTable", err)
		}
		if out.Table != nil {
			for _, gsi := range out.Table.GlobalSecondaryIndexes {
				if gsi.IndexName != nil && *gsi.IndexName == gsiName && gsi.IndexStatus == types.IndexStatusActive {
					return nil
				}
			}
		}
		if err := d.Sleep(ctx, gsiPollInterval); err != nil {
			return &CancelledError{TableName: tableName}
		}
	}
	return &WaitForActiveTimeoutError{TableName: tableName, IndexName: gsiName, Attempts: gsiPollCap}
}

// recordVersion writes the applied definition to the control table with a
// monotonic version number: pk=MIGRATION#{tableName}, sk=VERSION#{padded},
// version = latest prior + 1 (§4.11, §6).
func (d *Driver) recordVersion(ctx context.Context, tableName string, definition *TableDefinition) error {
	prevVersion, err := d.latestVersion(ctx, tableName)
	if err != nil {
		return err
	}
	version := prevVersion + 1

	defJSON, err := json.Marshal(definition)
	if err != nil {
		return fmt.Errorf("dynamo: marshaling definition for control table: %w", err)
	}

	item := map[string]any{
		"pk":        "MIGRATION#" + tableName,
		"sk":        fmt.Sprintf("VERSION#%06d", version),
		"tableName": tableName,
		"definition": string(defJSON),
		"appliedAt": d.Now().UTC().Format(time.RFC3339),
		"version":   float64(version),
	}
	av, err := MarshalMap(item)
	if err != nil {
		return err
	}
	_, err = d.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           ptr(d.ControlTable),
		Item:                av,
		ConditionExpression: ptr("attribute_not_exists(sk)"),
	})
	if err != nil {
		return wrapDynamoErr("PutItem(_qb_migrations)", err)
	}
	return nil
}

// latestVersion queries the control table for the highest version recorded
// for tableName, returning 0 if none exists.
func (d *Driver) latestVersion(ctx context.Context, tableName string) (int, error) {
	alloc := NewAliasAllocator()
	kb := NewConditionBuilder(alloc)
	cond, err := kb.Equal("pk", "MIGRATION#"+tableName)
	if err != nil {
		return 0, err
	}
	expr := BuildKeyCondition(alloc, cond)

	out, err := d.Client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 ptr(d.ControlTable),
		KeyConditionExpression:    ptr(expr.Text),
		ExpressionAttributeNames:  expr.ExpressionAttributeNames,
		ExpressionAttributeValues: expr.ExpressionAttributeValues,
		ScanIndexForward:          ptr(false),
		Limit:                     ptr(int32(1)),
	})
	if err != nil {
		return 0, wrapDynamoErr("Query(_qb_migrations)", err)
	}
	if len(out.Items) == 0 {
		return 0, nil
	}
	row, err := UnmarshalMap(out.Items[0])
	if err != nil {
		return 0, err
	}
	v, _ := row["version"].(float64)
	return int(v), nil
}

func keySchema(pk KeyDefinition, sk *KeyDefinition) []types.KeySchemaElement {
	schema := []types.KeySchemaElement{{AttributeName: ptr(pk.Name), KeyType: types.KeyTypeHash}}
	if sk != nil {
		schema = append(schema, types.KeySchemaElement{AttributeName: ptr(sk.Name), KeyType: types.KeyTypeRange})
	}
	return schema
}

func attributeDefinitions(def *TableDefinition) []types.AttributeDefinition {
	seen := map[string]bool{}
	var out []types.AttributeDefinition
	add := func(k KeyDefinition) {
		if seen[k.Name] {
			return
		}
		seen[k.Name] = true
		out = append(out, types.AttributeDefinition{AttributeName: ptr(k.Name), AttributeType: k.Type})
	}
	add(def.PartitionKey)
	if def.SortKey != nil {
		add(*def.SortKey)
	}
	for _, gsi := range def.GSIs {
		add(gsi.PartitionKey)
		if gsi.SortKey != nil {
			add(*gsi.SortKey)
		}
	}
	return out
}

func gsiInput(gsi GSIDefinition) types.GlobalSecondaryIndex {
	return types.GlobalSecondaryIndex{
		IndexName:             ptr(gsi.Name),
		KeySchema:             keySchema(gsi.PartitionKey, gsi.SortKey),
		Projection:            &types.Projection{ProjectionType: types.ProjectionTypeAll},
		ProvisionedThroughput: gsiThroughput(gsi),
	}
}

func gsiThroughput(gsi GSIDefinition) *types.ProvisionedThroughput {
	if gsi.ReadCapacity == 0 && gsi.WriteCapacity == 0 {
		return nil
	}
	return &types.ProvisionedThroughput{ReadCapacityUnits: ptr(gsi.ReadCapacity), WriteCapacityUnits: ptr(gsi.WriteCapacity)}
}

func wrapDynamoErr(operation string, err error) error {
	de := &DynamoDBError{Operation: operation, Message: err.Error(), Err: err}
	var apiErr interface {
		ErrorCode() string
		ErrorMessage() string
	}
	if errors.As(err, &apiErr) {
		de.Code = apiErr.ErrorCode()
		if msg := apiErr.ErrorMessage(); msg != "" {
			de.Message = msg
		}
	}
	var respErr interface{ HTTPStatusCode() int }
	if errors.As(err, &respErr) {
		de.StatusCode = respErr.HTTPStatusCode()
	}
	return de
}

func ptr[T any](v T) *T { return &v }
