// Package members is the family member registry: named accounts with a
// role tag and a spending limit. No financial computation happens here and
// no operation branches on role; it is metadata for the caller's
// capability checks.
package members

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"obligo/internal/core"
	"obligo/internal/events"
	"obligo/internal/kv"
)

// Role is a closed tag; free-text roles are rejected at write time.
type Role string

const (
	RoleSender    Role = "sender"
	RoleRecipient Role = "recipient"
	RoleAdmin     Role = "admin"
)

func (r Role) Validate() error {
	switch r {
	case RoleSender, RoleRecipient, RoleAdmin:
		return nil
	default:
		return ErrInvalidRole
	}
}

// Member is one registered family account.
type Member struct {
	Address       string
	Name          string
	SpendingLimit decimal.Decimal
	Role          Role
}

const (
	memberPrefix = "members/member/"
	indexKey     = "members/index"
	category     = "members"
)

const DefaultLeaseTTL = 30 * 24 * time.Hour

var (
	ErrInvalidRole    = errors.New("invalid role")
	ErrEmptyAddress   = errors.New("empty address")
	errShortCell      = errors.New("cell too short")
	errTrailing       = errors.New("trailing bytes in cell")
	errInvalidUTF8Str = errors.New("string field is not valid UTF-8")
)

// Registry stores members keyed by address, plus an index cell so List
// does not depend on store-level scans.
type Registry struct {
	store    kv.Store
	sink     events.Sink
	now      func() time.Time
	leaseTTL time.Duration
}

type Option func(*Registry)

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithLeaseTTL(ttl time.Duration) Option {
	return func(r *Registry) { r.leaseTTL = ttl }
}

func NewRegistry(store kv.Store, sink events.Sink, opts ...Option) *Registry {
	r := &Registry{
		store:    store,
		sink:     sink,
		now:      time.Now,
		leaseTTL: DefaultLeaseTTL,
	}
	if r.sink == nil {
		r.sink = events.NopSink{}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add registers a member, replacing any previous entry under the same
// address. The member cell and the index cell go into one batch.
func (r *Registry) Add(ctx context.Context, m Member) error {
	if m.Address == "" {
		return ErrEmptyAddress
	}
	if err := m.Role.Validate(); err != nil {
		return err
	}
	if err := core.ValidateLimit(m.SpendingLimit); err != nil {
		return err
	}

	index, err := r.index(ctx)
	if err != nil {
		return err
	}

	var b kv.Batch
	b.Put(memberPrefix+m.Address, encodeMember(m))
	if !contains(index, m.Address) {
		b.Put(indexKey, encodeIndex(append(index, m.Address)))
	}
	if err := r.store.Apply(ctx, &b); err != nil {
		return fmt.Errorf("store member: %w", err)
	}

	r.emit(ctx, events.OpAdded, m.Address)
	r.extendLease(ctx)

	slog.InfoContext(ctx, "Member added",
		"address", m.Address,
		"name", m.Name,
		"role", string(m.Role),
		"spending_limit", m.SpendingLimit.String())

	return nil
}

// Get returns the member, or nil when the address is unknown.
func (r *Registry) Get(ctx context.Context, address string) (*Member, error) {
	raw, ok, err := r.store.Get(ctx, memberPrefix+address)
	if err != nil {
		return nil, fmt.Errorf("read member %s: %w", address, err)
	}
	if !ok {
		return nil, nil
	}
	m, err := decodeMember(raw)
	if err != nil {
		return nil, fmt.Errorf("decode member %s: %w", address, err)
	}
	return &m, nil
}

// List returns every registered member sorted by address.
func (r *Registry) List(ctx context.Context) ([]Member, error) {
	index, err := r.index(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(index)

	out := make([]Member, 0, len(index))
	for _, address := range index {
		m, err := r.Get(ctx, address)
		if err != nil {
			return nil, err
		}
		if m != nil {
			out = append(out, *m)
		}
	}
	return out, nil
}

// UpdateSpendingLimit replaces a member's limit. Returns false when the
// address is unknown.
func (r *Registry) UpdateSpendingLimit(ctx context.Context, address string, limit decimal.Decimal) (bool, error) {
	if err := core.ValidateLimit(limit); err != nil {
		return false, err
	}

	m, err := r.Get(ctx, address)
	if err != nil {
		return false, err
	}
	if m == nil {
		return false, nil
	}

	m.SpendingLimit = limit
	var b kv.Batch
	b.Put(memberPrefix+address, encodeMember(*m))
	if err := r.store.Apply(ctx, &b); err != nil {
		return false, fmt.Errorf("store member: %w", err)
	}

	r.emit(ctx, events.OpUpdated, address)
	r.extendLease(ctx)
	return true, nil
}

// CheckSpendingLimit reports whether amount fits within the member's
// limit. Unknown members fail the check.
func (r *Registry) CheckSpendingLimit(ctx context.Context, address string, amount decimal.Decimal) (bool, error) {
	m, err := r.Get(ctx, address)
	if err != nil {
		return false, err
	}
	if m == nil {
		return false, nil
	}
	return amount.Cmp(m.SpendingLimit) <= 0, nil
}

func (r *Registry) index(ctx context.Context) ([]string, error) {
	raw, ok, err := r.store.Get(ctx, indexKey)
	if err != nil {
		return nil, fmt.Errorf("read member index: %w", err)
	}
	if !ok {
		return nil, nil
	}
	index, err := decodeIndex(raw)
	if err != nil {
		return nil, fmt.Errorf("decode member index: %w", err)
	}
	return index, nil
}

func (r *Registry) emit(ctx context.Context, operation, address string) {
	e := events.Event{
		Category:  category,
		Operation: operation,
		Actor:     address,
		Timestamp: r.now(),
	}
	if err := r.sink.Publish(ctx, e); err != nil {
		slog.WarnContext(ctx, "Failed to publish audit event",
			"category", category, "operation", operation, "error", err)
	}
}

func (r *Registry) extendLease(ctx context.Context) {
	if err := r.store.ExtendLease(ctx, r.leaseTTL); err != nil {
		slog.WarnContext(ctx, "Failed to extend storage lease", "error", err)
	}
}

func contains(index []string, address string) bool {
	for _, a := range index {
		if a == address {
			return true
		}
	}
	return false
}

// Member cells: u32 length-prefixed UTF-8 address and name, 16-byte
// big-endian spending limit, one role byte.

var roleBytes = map[Role]byte{
	RoleSender:    0,
	RoleRecipient: 1,
	RoleAdmin:     2,
}

var byteRoles = map[byte]Role{
	0: RoleSender,
	1: RoleRecipient,
	2: RoleAdmin,
}

func encodeMember(m Member) []byte {
	buf := make([]byte, 0, 4+len(m.Address)+4+len(m.Name)+16+1)
	buf = appendString(buf, m.Address)
	buf = appendString(buf, m.Name)
	limit := make([]byte, 16)
	m.SpendingLimit.BigInt().FillBytes(limit)
	buf = append(buf, limit...)
	return append(buf, roleBytes[m.Role])
}

func decodeMember(data []byte) (Member, error) {
	var m Member
	var err error

	m.Address, data, err = readString(data)
	if err != nil {
		return m, fmt.Errorf("address: %w", err)
	}
	m.Name, data, err = readString(data)
	if err != nil {
		return m, fmt.Errorf("name: %w", err)
	}
	if len(data) != 16+1 {
		return m, errShortCell
	}
	m.SpendingLimit = decimal.NewFromBigInt(new(big.Int).SetBytes(data[:16]), 0)
	role, ok := byteRoles[data[16]]
	if !ok {
		return m, ErrInvalidRole
	}
	m.Role = role
	return m, nil
}

func encodeIndex(addresses []string) []byte {
	buf := binary.BigEndian.AppendUint32(nil, uint32(len(addresses)))
	for _, a := range addresses {
		buf = appendString(buf, a)
	}
	return buf
}

func decodeIndex(data []byte) ([]string, error) {
	if len(data) < 4 {
		return nil, errShortCell
	}
	n := binary.BigEndian.Uint32(data)
	data = data[4:]

	out := make([]string, 0, n)
	var err error
	for i := uint32(0); i < n; i++ {
		var a string
		a, data, err = readString(data)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if len(data) != 0 {
		return nil, errTrailing
	}
	return out, nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func readString(data []byte) (string, []byte, error) {
	if len(data) < 4 {
		return "", nil, errShortCell
	}
	n := binary.BigEndian.Uint32(data)
	data = data[4:]
	if uint32(len(data)) < n {
		return "", nil, errShortCell
	}
	s := string(data[:n])
	if !utf8.ValidString(s) {
		return "", nil, errInvalidUTF8Str
	}
	return s, data[n:], nil
}
