// Package dynamofake is an in-memory DynamoDB for unit tests.
//
// It implements internal/aws.DynamoDBAPI and understands the expression forms
// the stores issue: SET update lists, attribute_exists / attribute_not_exists /
// equality / less-than conditions joined by AND and OR, and key conditions
// with begins_with. Transactions are all-or-nothing and report
// per-item cancellation reasons like the real service.
package dynamofake

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Item is a stored DynamoDB item.
type Item = map[string]types.AttributeValue

// Index describes a global secondary index projecting all attributes.
type Index struct {
	PartitionAttr string
	SortAttr      string
}

// Option configures a Client.
type Option func(*Client)

// WithIndex registers a global secondary index available on every table.
func WithIndex(name, partitionAttr, sortAttr string) Option {
	return func(c *Client) {
		c.indexes[name] = Index{PartitionAttr: partitionAttr, SortAttr: sortAttr}
	}
}

// WithPageSize caps every Query page, forcing callers to follow LastEvaluatedKey.
func WithPageSize(n int) Option {
	return func(c *Client) {
		c.pageSize = n
	}
}

// WithKeySchema overrides the default "PK"/"SK" table key attributes.
func WithKeySchema(partitionAttr, sortAttr string) Option {
	return func(c *Client) {
		c.pkAttr, c.skAttr = partitionAttr, sortAttr
	}
}

// Client is the in-memory table set.
type Client struct {
	mu       sync.Mutex
	pkAttr   string
	skAttr   string
	tables   map[string]map[string]Item
	indexes  map[string]Index
	pageSize int
	failures map[string]error
	calls    map[string]int
}

// New returns an empty fake.
func New(opts ...Option) *Client {
	c := &Client{
		pkAttr:   "PK",
		skAttr:   "SK",
		tables:   map[string]map[string]Item{},
		indexes:  map[string]Index{},
		failures: map[string]error{},
		calls:    map[string]int{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// FailNext makes the next call of op ("GetItem", "PutItem", "UpdateItem",
// "Query", "TransactWriteItems") return err.
func (c *Client) FailNext(op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[op] = err
}

// Calls returns how many times op was invoked.
func (c *Client) Calls(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

// Get returns a copy of the stored item, or nil.
func (c *Client) Get(table, pk, sk string) Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.table(table)[storageKey(pk, sk)]
	if !ok {
		return nil
	}
	return copyItem(it)
}

// Len returns the number of items in table.
func (c *Client) Len(table string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.table(table))
}

// Seed stores item unconditionally.
func (c *Client) Seed(table string, item Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	k, err := c.keyOf(item)
	if err != nil {
		return err
	}
	c.table(table)[k] = copyItem(item)
	return nil
}

func (c *Client) begin(op string) error {
	c.calls[op]++
	if err, ok := c.failures[op]; ok {
		delete(c.failures, op)
		return err
	}
	return nil
}

func (c *Client) table(name string) map[string]Item {
	t, ok := c.tables[name]
	if !ok {
		t = map[string]Item{}
		c.tables[name] = t
	}
	return t
}

func storageKey(pk, sk string) string { return pk + "\x00" + sk }

func (c *Client) keyOf(item Item) (string, error) {
	pk, ok1 := stringAttr(item, c.pkAttr)
	sk, ok2 := stringAttr(item, c.skAttr)
	if !ok1 || !ok2 {
		return "", fmt.Errorf("dynamofake: item is missing key attributes %s/%s", c.pkAttr, c.skAttr)
	}
	return storageKey(pk, sk), nil
}

func (c *Client) keyItem(item Item) Item {
	return Item{c.pkAttr: item[c.pkAttr], c.skAttr: item[c.skAttr]}
}

// GetItem implements aws.DynamoDBAPI.
func (c *Client) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("GetItem"); err != nil {
		return nil, err
	}
	k, err := c.keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	it, ok := c.table(sdkaws.ToString(params.TableName))[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: copyItem(it)}, nil
}

// PutItem implements aws.DynamoDBAPI.
func (c *Client) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("PutItem"); err != nil {
		return nil, err
	}
	t := c.table(sdkaws.ToString(params.TableName))
	k, err := c.keyOf(params.Item)
	if err != nil {
		return nil, err
	}
	ok, err := evalCondition(sdkaws.ToString(params.ConditionExpression), params.ExpressionAttributeNames, params.ExpressionAttributeValues, t[k])
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: sdkaws.String("The conditional request failed")}
	}
	t[k] = copyItem(params.Item)
	return &dyn.PutItemOutput{}, nil
}

// UpdateItem implements aws.DynamoDBAPI. Missing items are upserted when
// the condition allows it, as DynamoDB does.
func (c *Client) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("UpdateItem"); err != nil {
		return nil, err
	}
	t := c.table(sdkaws.ToString(params.TableName))
	k, err := c.keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	updated, ok, err := c.prepareUpdate(t, k, params.Key, sdkaws.ToString(params.UpdateExpression), sdkaws.ToString(params.ConditionExpression), params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: sdkaws.String("The conditional request failed")}
	}
	t[k] = updated
	return &dyn.UpdateItemOutput{Attributes: copyItem(updated)}, nil
}

func (c *Client) prepareUpdate(t map[string]Item, k string, key Item, updateExpr, condExpr string, names map[string]string, values map[string]types.AttributeValue) (Item, bool, error) {
	current := t[k]
	ok, err := evalCondition(condExpr, names, values, current)
	if err != nil || !ok {
		return nil, ok, err
	}
	next := copyItem(current)
	if next == nil {
		next = copyItem(key)
	}
	if err := applyUpdate(updateExpr, names, values, next); err != nil {
		return nil, false, err
	}
	return next, true, nil
}

// TransactWriteItems implements aws.DynamoDBAPI. Every condition is checked
// before anything is written.
func (c *Client) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("TransactWriteItems"); err != nil {
		return nil, err
	}

	type write struct {
		table string
		key   string
		item  Item
	}
	writes := make([]write, 0, len(params.TransactItems))
	reasons := make([]types.CancellationReason, len(params.TransactItems))
	failed := false
	seen := map[string]bool{}

	for i, ti := range params.TransactItems {
		reasons[i] = types.CancellationReason{Code: sdkaws.String("None")}
		switch {
		case ti.Put != nil:
			p := ti.Put
			tbl := sdkaws.ToString(p.TableName)
			k, err := c.keyOf(p.Item)
			if err != nil {
				return nil, err
			}
			if seen[tbl+k] {
				return nil, errors.New("dynamofake: transaction touches the same item twice")
			}
			seen[tbl+k] = true
			ok, err := evalCondition(sdkaws.ToString(p.ConditionExpression), p.ExpressionAttributeNames, p.ExpressionAttributeValues, c.table(tbl)[k])
			if err != nil {
				return nil, err
			}
			if !ok {
				reasons[i].Code = sdkaws.String("ConditionalCheckFailed")
				failed = true
				continue
			}
			writes = append(writes, write{table: tbl, key: k, item: copyItem(p.Item)})
		case ti.Update != nil:
			u := ti.Update
			tbl := sdkaws.ToString(u.TableName)
			k, err := c.keyOf(u.Key)
			if err != nil {
				return nil, err
			}
			if seen[tbl+k] {
				return nil, errors.New("dynamofake: transaction touches the same item twice")
			}
			seen[tbl+k] = true
			next, ok, err := c.prepareUpdate(c.table(tbl), k, u.Key, sdkaws.ToString(u.UpdateExpression), sdkaws.ToString(u.ConditionExpression), u.ExpressionAttributeNames, u.ExpressionAttributeValues)
			if err != nil {
				return nil, err
			}
			if !ok {
				reasons[i].Code = sdkaws.String("ConditionalCheckFailed")
				failed = true
				continue
			}
			writes = append(writes, write{table: tbl, key: k, item: next})
		default:
			return nil, errors.New("dynamofake: only Put and Update are supported in transactions")
		}
	}

	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             sdkaws.String("Transaction cancelled, please refer cancellation reasons for specific reasons"),
			CancellationReasons: reasons,
		}
	}
	for _, w := range writes {
		c.table(w.table)[w.key] = w.item
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

// Query implements aws.DynamoDBAPI for partition-equality key conditions with
// an optional begins_with on the sort key.
func (c *Client) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("Query"); err != nil {
		return nil, err
	}

	pkAttr, skAttr := c.pkAttr, c.skAttr
	if name := sdkaws.ToString(params.IndexName); name != "" {
		idx, ok := c.indexes[name]
		if !ok {
			return nil, fmt.Errorf("dynamofake: unknown index %q", name)
		}
		pkAttr, skAttr = idx.PartitionAttr, idx.SortAttr
	}

	var matched []Item
	for _, it := range c.table(sdkaws.ToString(params.TableName)) {
		if _, ok := it[pkAttr]; !ok {
			continue
		}
		if _, ok := it[skAttr]; !ok {
			continue
		}
		ok, err := evalCondition(sdkaws.ToString(params.KeyConditionExpression), params.ExpressionAttributeNames, params.ExpressionAttributeValues, it)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, it)
		}
	}

	sortKey := func(it Item) string {
		s, _ := stringAttr(it, skAttr)
		tk, _ := c.keyOf(it)
		return s + "\x00" + tk
	}
	sort.Slice(matched, func(i, j int) bool { return sortKey(matched[i]) < sortKey(matched[j]) })
	if params.ScanIndexForward != nil && !*params.ScanIndexForward {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}

	if start := params.ExclusiveStartKey; len(start) > 0 {
		sk, err := c.keyOf(start)
		if err != nil {
			return nil, err
		}
		for i, it := range matched {
			if k, _ := c.keyOf(it); k == sk {
				matched = matched[i+1:]
				break
			}
		}
	}

	limit := len(matched)
	if params.Limit != nil && int(*params.Limit) < limit {
		limit = int(*params.Limit)
	}
	if c.pageSize > 0 && c.pageSize < limit {
		limit = c.pageSize
	}

	out := &dyn.QueryOutput{}
	for _, it := range matched[:limit] {
		out.Items = append(out.Items, copyItem(it))
	}
	out.Count = int32(len(out.Items))
	if limit > 0 && limit < len(matched) {
		last := matched[limit-1]
		lek := c.keyItem(last)
		lek[pkAttr] = last[pkAttr]
		lek[skAttr] = last[skAttr]
		out.LastEvaluatedKey = lek
	}
	return out, nil
}

func evalCondition(expr string, names map[string]string, values map[string]types.AttributeValue, item Item) (bool, error) {
	if strings.TrimSpace(expr) == "" {
		return true, nil
	}
	// AND binds tighter than OR; parentheses are not supported.
	for _, disjunct := range strings.Split(expr, " OR ") {
		ok, err := evalConjunction(disjunct, names, values, item)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

func evalConjunction(expr string, names map[string]string, values map[string]types.AttributeValue, item Item) (bool, error) {
	for _, clause := range strings.Split(expr, " AND ") {
		ok, err := evalClause(strings.TrimSpace(clause), names, values, item)
		if err != nil || !ok {
			return ok, err
		}
	}
	return true, nil
}

func evalClause(clause string, names map[string]string, values map[string]types.AttributeValue, item Item) (bool, error) {
	switch {
	case strings.HasPrefix(clause, "attribute_not_exists("):
		_, ok := item[resolveName(args(clause)[0], names)]
		return !ok, nil
	case strings.HasPrefix(clause, "attribute_exists("):
		_, ok := item[resolveName(args(clause)[0], names)]
		return ok, nil
	case strings.HasPrefix(clause, "begins_with("):
		a := args(clause)
		if len(a) != 2 {
			return false, fmt.Errorf("dynamofake: malformed %q", clause)
		}
		prefix, ok := values[a[1]].(*types.AttributeValueMemberS)
		if !ok {
			return false, fmt.Errorf("dynamofake: missing string value %s", a[1])
		}
		cur, ok := stringAttr(item, resolveName(a[0], names))
		return ok && strings.HasPrefix(cur, prefix.Value), nil
	case strings.Contains(clause, "<>"):
		lhs, rhs, _ := strings.Cut(clause, "<>")
		v, err := value(strings.TrimSpace(rhs), values)
		if err != nil {
			return false, err
		}
		cur, ok := item[resolveName(strings.TrimSpace(lhs), names)]
		return !ok || !equal(cur, v), nil
	case strings.Contains(clause, "<"):
		lhs, rhs, _ := strings.Cut(clause, "<")
		v, err := value(strings.TrimSpace(rhs), values)
		if err != nil {
			return false, err
		}
		cur, ok := item[resolveName(strings.TrimSpace(lhs), names)]
		if !ok {
			return false, nil
		}
		return less(cur, v)
	case strings.Contains(clause, "="):
		lhs, rhs, _ := strings.Cut(clause, "=")
		v, err := value(strings.TrimSpace(rhs), values)
		if err != nil {
			return false, err
		}
		cur, ok := item[resolveName(strings.TrimSpace(lhs), names)]
		return ok && equal(cur, v), nil
	}
	return false, fmt.Errorf("dynamofake: unsupported condition %q", clause)
}

func applyUpdate(expr string, names map[string]string, values map[string]types.AttributeValue, item Item) error {
	expr = strings.TrimSpace(expr)
	body, ok := strings.CutPrefix(expr, "SET ")
	if !ok {
		return fmt.Errorf("dynamofake: only SET updates are supported, got %q", expr)
	}
	for _, assign := range strings.Split(body, ",") {
		lhs, rhs, ok := strings.Cut(assign, "=")
		if !ok {
			return fmt.Errorf("dynamofake: malformed assignment %q", assign)
		}
		v, err := value(strings.TrimSpace(rhs), values)
		if err != nil {
			return err
		}
		item[resolveName(strings.TrimSpace(lhs), names)] = v
	}
	return nil
}

func args(call string) []string {
	open, end := strings.Index(call, "("), strings.LastIndex(call, ")")
	if open < 0 || end < open {
		return []string{""}
	}
	parts := strings.Split(call[open+1:end], ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func resolveName(token string, names map[string]string) string {
	if strings.HasPrefix(token, "#") {
		if n, ok := names[token]; ok {
			return n
		}
	}
	return token
}

func value(token string, values map[string]types.AttributeValue) (types.AttributeValue, error) {
	v, ok := values[token]
	if !ok {
		return nil, fmt.Errorf("dynamofake: no value for %s", token)
	}
	return v, nil
}

func equal(a, b types.AttributeValue) bool {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		return ok && av.Value == bv.Value
	}
	return reflect.DeepEqual(a, b)
}

func less(a, b types.AttributeValue) (bool, error) {
	switch av := a.(type) {
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return false, nil
		}
		x, err := strconv.ParseFloat(av.Value, 64)
		if err != nil {
			return false, err
		}
		y, err := strconv.ParseFloat(bv.Value, 64)
		if err != nil {
			return false, err
		}
		return x < y, nil
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		return ok && av.Value < bv.Value, nil
	}
	return false, fmt.Errorf("dynamofake: cannot order %T", a)
}

func stringAttr(item Item, name string) (string, bool) {
	v, ok := item[name].(*types.AttributeValueMemberS)
	if !ok {
		return "", false
	}
	return v.Value, true
}

func copyItem(it Item) Item {
	if it == nil {
		return nil
	}
	out := make(Item, len(it))
	for k, v := range it {
		out[k] = v
	}
	return out
}
