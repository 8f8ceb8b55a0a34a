package audit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	records   []Record
	closeErr  error
	closeWait chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{closeWait: make(chan struct{}, 1)}
}

func (s *recordingSink) Record(r Record) { s.records = append(s.records, r) }
func (s *recordingSink) Close() error {
	s.closeWait <- struct{}{}
	return s.closeErr
}

func TestMultiFansOutToEverySink(t *testing.T) {
	a, b := newRecordingSink(), newRecordingSink()
	m := NewMulti(a, b)

	m.Record(Record{Method: "echo", UID: "u1"})

	require.Len(t, a.records, 1)
	require.Len(t, b.records, 1)
	require.Equal(t, "echo", a.records[0].Method)
}

func TestMultiRecordRPCBuildsARecord(t *testing.T) {
	a := newRecordingSink()
	m := NewMulti(a)

	m.RecordRPC("ping", "u2", []byte(`{"x":1}`))

	require.Len(t, a.records, 1)
	require.Equal(t, "ping", a.records[0].Method)
	require.Equal(t, "u2", a.records[0].UID)
	require.Equal(t, []byte(`{"x":1}`), a.records[0].Params)
	require.WithinDuration(t, time.Now(), a.records[0].Time, 5*time.Second)
}

func TestMultiCloseReturnsFirstError(t *testing.T) {
	a, b := newRecordingSink(), newRecordingSink()
	a.closeErr = errors.New("boom")
	m := NewMulti(a, b)

	err := m.Close()
	require.ErrorContains(t, err, "boom")
	<-a.closeWait
	<-b.closeWait
}
