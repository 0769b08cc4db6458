// Package ydbseed applies the relational fixture schema and rows to a YDB database.
// Rows are upserted, so a rerun rewrites them with fresh timestamps.
package ydbseed

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/ydb-platform/ydb-go-sdk/v3"
	"github.com/ydb-platform/ydb-go-sdk/v3/sugar"
	"github.com/ydb-platform/ydb-go-sdk/v3/table"
	"github.com/ydb-platform/ydb-go-sdk/v3/table/types"
	"go.uber.org/zap"

	"github.com/global-data-controller/emuseed/internal/emulator"
	"github.com/global-data-controller/emuseed/internal/fixtures"
	"github.com/global-data-controller/emuseed/internal/logging"
	"github.com/global-data-controller/emuseed/internal/seed"
)

// Name is the seeder name
const Name = "ydb"

// UpsertQuery writes both tables in one transaction. CurrentUtcTimestamp plays the
// role of a commit timestamp.
const UpsertQuery = `
DECLARE $users AS List<Struct<user_id: Int64, user_name: Utf8, email: Utf8>>;
DECLARE $orders AS List<Struct<order_id: Int64, user_id: Int64, product_name: Utf8, quantity: Int64, price: Utf8>>;

UPSERT INTO users
SELECT user_id, user_name, email, CurrentUtcTimestamp() AS created_at
FROM AS_TABLE($users);

UPSERT INTO orders
SELECT order_id, user_id, product_name, quantity,
       CAST(price AS Decimal(22, 9)) AS price,
       CurrentUtcTimestamp() AS order_date
FROM AS_TABLE($orders);
`

// Config holds the connection string and conflict policy
type Config struct {
	DSN        string
	OnConflict emulator.ConflictPolicy
}

// Executor runs scheme and data queries
type Executor interface {
	TableExists(ctx context.Context, name string) (bool, error)
	ExecuteScheme(ctx context.Context, query string) error
	ExecuteTx(ctx context.Context, query string, params *table.QueryParameters) error
	Close(ctx context.Context) error
}

type driverExecutor struct {
	driver *ydb.Driver
}

func (d driverExecutor) TableExists(ctx context.Context, name string) (bool, error) {
	return sugar.IsTableExists(ctx, d.driver.Scheme(), path.Join(d.driver.Name(), name))
}

func (d driverExecutor) ExecuteScheme(ctx context.Context, query string) error {
	return d.driver.Table().Do(ctx, func(ctx context.Context, s table.Session) error {
		return s.ExecuteSchemeQuery(ctx, query)
	})
}

func (d driverExecutor) ExecuteTx(ctx context.Context, query string, params *table.QueryParameters) error {
	return d.driver.Table().DoTx(ctx, func(ctx context.Context, tx table.TransactionActor) error {
		res, err := tx.Execute(ctx, query, params)
		if err != nil {
			return err
		}
		return res.Close()
	}, table.WithIdempotent())
}

func (d driverExecutor) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}

// Seeder creates the YDB tables and upserts the rows
type Seeder struct {
	exec     Executor
	config   Config
	fixtures fixtures.RelationalFixtures
	logger   logging.Logger
}

// New connects to YDB
func New(ctx context.Context, config Config, f fixtures.RelationalFixtures, logger logging.Logger) (*Seeder, error) {
	driver, err := ydb.Open(ctx, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to YDB: %w", err)
	}
	return NewWithExecutor(driverExecutor{driver: driver}, config, f, logger), nil
}

// NewWithExecutor builds a seeder around an existing executor
func NewWithExecutor(exec Executor, config Config, f fixtures.RelationalFixtures, logger logging.Logger) *Seeder {
	if logger == nil {
		logger = logging.NewNop()
	}
	if config.OnConflict == "" {
		config.OnConflict = emulator.ConflictSkip
	}
	return &Seeder{
		exec:     exec,
		config:   config,
		fixtures: f,
		logger:   logger,
	}
}

// Name implements seed.Seeder
func (s *Seeder) Name() string {
	return Name
}

// Seed executes every DDL statement whose table does not exist yet, then upserts
// users and orders in one transaction
func (s *Seeder) Seed(ctx context.Context) (*seed.Result, error) {
	params, err := Params(s.fixtures)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(s.fixtures.YDBDDL))
	for i, stmt := range s.fixtures.YDBDDL {
		name, ok := tableName(stmt)
		if !ok {
			return nil, fmt.Errorf("ydb statement %d is not a CREATE TABLE statement", i)
		}
		names[i] = name
	}

	rows := len(s.fixtures.Users) + len(s.fixtures.Orders)
	res := seed.NewResult(Name, len(s.fixtures.YDBDDL)+rows)

	for i, stmt := range s.fixtures.YDBDDL {
		name := names[i]

		exists, err := s.exec.TableExists(ctx, name)
		if err != nil {
			return res, fmt.Errorf("failed to check table %s: %w", name, err)
		}
		if exists {
			if s.config.OnConflict != emulator.ConflictSkip {
				return res, fmt.Errorf("table %s already exists", name)
			}
			res.Skip("tables/" + name)
			s.logger.Info(ctx, "Table already exists, skipping", zap.String("table", name))
			continue
		}

		if err := s.exec.ExecuteScheme(ctx, stmt); err != nil {
			return res, fmt.Errorf("failed to execute statement for table %s: %w", name, err)
		}
		res.Create("tables/" + name)
		s.logger.Info(ctx, "Table created", zap.String("table", name))
	}

	if rows == 0 {
		return res, nil
	}

	if err := s.exec.ExecuteTx(ctx, UpsertQuery, params); err != nil {
		return res, fmt.Errorf("failed to upsert sample data: %w", err)
	}

	for _, u := range s.fixtures.Users {
		res.Create("users/" + strconv.FormatInt(u.UserID, 10))
	}
	for _, o := range s.fixtures.Orders {
		res.Create("orders/" + strconv.FormatInt(o.OrderID, 10))
	}

	s.logger.Info(ctx, "YDB sample data upserted", zap.Int("rows", rows))
	return res, nil
}

// Close closes the driver
func (s *Seeder) Close() error {
	return s.exec.Close(context.Background())
}

// Params builds the $users and $orders list parameters of UpsertQuery
func Params(f fixtures.RelationalFixtures) (*table.QueryParameters, error) {
	users := make([]types.Value, 0, len(f.Users))
	for _, u := range f.Users {
		users = append(users, types.StructValue(
			types.StructFieldValue("user_id", types.Int64Value(u.UserID)),
			types.StructFieldValue("user_name", types.TextValue(u.UserName)),
			types.StructFieldValue("email", types.TextValue(u.Email)),
		))
	}

	orders := make([]types.Value, 0, len(f.Orders))
	for _, o := range f.Orders {
		if _, err := o.PriceRat(); err != nil {
			return nil, err
		}
		orders = append(orders, types.StructValue(
			types.StructFieldValue("order_id", types.Int64Value(o.OrderID)),
			types.StructFieldValue("user_id", types.Int64Value(o.UserID)),
			types.StructFieldValue("product_name", types.TextValue(o.ProductName)),
			types.StructFieldValue("quantity", types.Int64Value(o.Quantity)),
			types.StructFieldValue("price", types.TextValue(o.Price)),
		))
	}

	return table.NewQueryParameters(
		table.ValueParam("$users", listValue(users, types.Struct(
			types.StructField("user_id", types.TypeInt64),
			types.StructField("user_name", types.TypeText),
			types.StructField("email", types.TypeText),
		))),
		table.ValueParam("$orders", listValue(orders, types.Struct(
			types.StructField("order_id", types.TypeInt64),
			types.StructField("user_id", types.TypeInt64),
			types.StructField("product_name", types.TypeText),
			types.StructField("quantity", types.TypeInt64),
			types.StructField("price", types.TypeText),
		))),
	), nil
}

func listValue(items []types.Value, item types.Type) types.Value {
	if len(items) == 0 {
		return types.ZeroValue(types.List(item))
	}
	return types.ListValue(items...)
}

// tableName extracts the table name from a CREATE TABLE statement
func tableName(stmt string) (string, bool) {
	fields := strings.Fields(stmt)
	if len(fields) < 3 || !strings.EqualFold(fields[0], "CREATE") || !strings.EqualFold(fields[1], "TABLE") {
		return "", false
	}
	name, _, _ := strings.Cut(fields[2], "(")
	name = strings.Trim(name, "`")
	return name, name != ""
}
