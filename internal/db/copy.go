package db

import (
	"github.com/jackc/pgx/v5"
)

// Copyable is a row that knows its COPY column values.
type Copyable interface {
	CopyValues() []any
}

// ChannelSource implements pgx.CopyFromSource by reading rows from a channel.
// This provides natural backpressure between the Parquet reader and COPY writer.
type ChannelSource[T Copyable] struct {
	ch      <-chan T
	errc    <-chan error
	current T
	err     error
	count   int64
}

// NewChannelSource creates a CopyFromSource backed by a channel. The producer
// closes ch when done and may report a failure on errc, which is optional.
func NewChannelSource[T Copyable](ch <-chan T, errc <-chan error) *ChannelSource[T] {
	return &ChannelSource[T]{ch: ch, errc: errc}
}

// Next advances to the next row. Returns false when the channel is closed.
func (s *ChannelSource[T]) Next() bool {
	row, ok := <-s.ch
	if !ok {
		if s.errc != nil {
			s.err = <-s.errc
		}
		return false
	}
	s.current = row
	s.count++
	return true
}

// Values returns the current row's values in COPY column order.
func (s *ChannelSource[T]) Values() ([]any, error) {
	return s.current.CopyValues(), nil
}

// Err returns the producer's error, if any, once the channel is drained.
func (s *ChannelSource[T]) Err() error {
	return s.err
}

// Count returns the number of rows handed to COPY so far.
func (s *ChannelSource[T]) Count() int64 {
	return s.count
}

// Compile-time check that ChannelSource satisfies the interface.
var _ pgx.CopyFromSource = (*ChannelSource[Copyable])(nil)
