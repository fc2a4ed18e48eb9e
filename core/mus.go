package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// Hand-written MUS serializers for the stored entities. The field order here
// is the on-disk format; append new fields at the end and bump the entity
// Version when changing it.

var (
	// IDMUS serializes an ID.
	IDMUS = idSer{}

	// EmbedJobMUS serializes an EmbedJob.
	EmbedJobMUS = embedJobSer{}

	// EmbeddingRecordMUS serializes an EmbeddingRecord.
	EmbeddingRecordMUS = embeddingRecordSer{}

	vectorMUS = ord.NewSliceSer[float32](raw.Float32)
)

type idSer struct{}

func (idSer) Marshal(id ID, bs []byte) int {
	return varint.Uint64.Marshal(uint64(id), bs)
}

func (idSer) Unmarshal(bs []byte) (ID, int, error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return ID(v), n, err
}

func (idSer) Size(id ID) int {
	return varint.Uint64.Size(uint64(id))
}

// marshalTime encodes a timestamp as Unix microseconds, with the zero time
// encoded as 0 so it round-trips as time.Time{}.
func marshalTime(t time.Time, bs []byte) int {
	var micros int64
	if !t.IsZero() {
		micros = t.UnixMicro()
	}
	return varint.Int64.Marshal(micros, bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	micros, n, err := varint.Int64.Unmarshal(bs)
	if err != nil || micros == 0 {
		return time.Time{}, n, err
	}
	return time.UnixMicro(micros).UTC(), n, nil
}

func sizeTime(t time.Time) int {
	var micros int64
	if !t.IsZero() {
		micros = t.UnixMicro()
	}
	return varint.Int64.Size(micros)
}

type embedJobSer struct{}

func (embedJobSer) Marshal(j EmbedJob, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(j.Id), bs)
	n += ord.String.Marshal(string(j.Level), bs[n:])
	n += ord.String.Marshal(j.SessionID, bs[n:])
	n += ord.String.Marshal(j.CycleID, bs[n:])
	n += ord.String.Marshal(j.SourceTable, bs[n:])
	n += ord.String.Marshal(j.RowID, bs[n:])
	n += ord.String.Marshal(j.ColumnName, bs[n:])
	n += ord.String.Marshal(j.FieldLabel, bs[n:])
	n += ord.String.Marshal(j.Text, bs[n:])
	n += ord.String.Marshal(string(j.Status), bs[n:])
	n += ord.String.Marshal(j.ErrorMessage, bs[n:])
	n += varint.Int.Marshal(j.Version, bs[n:])
	n += marshalTime(j.CreatedAt, bs[n:])
	n += marshalTime(j.StartedAt, bs[n:])
	n += marshalTime(j.ProcessedAt, bs[n:])
	return n
}

func (embedJobSer) Unmarshal(bs []byte) (j EmbedJob, n int, err error) {
	var (
		id            uint64
		level, status string
		m             int
	)
	if id, n, err = varint.Uint64.Unmarshal(bs); err != nil {
		return
	}
	j.Id = ID(id)
	if level, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	j.Level = Level(level)
	if j.SessionID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	if j.CycleID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	if j.SourceTable, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	if j.RowID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	if j.ColumnName, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	if j.FieldLabel, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	if j.Text, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	if status, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	j.Status = JobStatus(status)
	if j.ErrorMessage, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	if j.Version, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	if j.CreatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	if j.StartedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	if j.ProcessedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return j, n + m, err
	}
	n += m
	return j, n, nil
}

func (embedJobSer) Size(j EmbedJob) (size int) {
	size = varint.Uint64.Size(uint64(j.Id))
	size += ord.String.Size(string(j.Level))
	size += ord.String.Size(j.SessionID)
	size += ord.String.Size(j.CycleID)
	size += ord.String.Size(j.SourceTable)
	size += ord.String.Size(j.RowID)
	size += ord.String.Size(j.ColumnName)
	size += ord.String.Size(j.FieldLabel)
	size += ord.String.Size(j.Text)
	size += ord.String.Size(string(j.Status))
	size += ord.String.Size(j.ErrorMessage)
	size += varint.Int.Size(j.Version)
	size += sizeTime(j.CreatedAt)
	size += sizeTime(j.StartedAt)
	size += sizeTime(j.ProcessedAt)
	return size
}

type embeddingRecordSer struct{}

func (embeddingRecordSer) Marshal(r EmbeddingRecord, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(r.Id), bs)
	n += ord.String.Marshal(r.Key, bs[n:])
	n += ord.String.Marshal(string(r.Level), bs[n:])
	n += ord.String.Marshal(r.SessionID, bs[n:])
	n += ord.String.Marshal(r.CycleID, bs[n:])
	n += ord.String.Marshal(r.Column, bs[n:])
	n += ord.String.Marshal(r.FieldLabel, bs[n:])
	n += vectorMUS.Marshal(r.Vector, bs[n:])
	n += ord.String.Marshal(r.Text, bs[n:])
	n += varint.Int.Marshal(r.Version, bs[n:])
	n += marshalTime(r.CreatedAt, bs[n:])
	return n
}

func (embeddingRecordSer) Unmarshal(bs []byte) (r EmbeddingRecord, n int, err error) {
	var (
		id    uint64
		level string
		m     int
	)
	if id, n, err = varint.Uint64.Unmarshal(bs); err != nil {
		return
	}
	r.Id = ID(id)
	if r.Key, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return r, n + m, err
	}
	n += m
	if level, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return r, n + m, err
	}
	n += m
	r.Level = Level(level)
	if r.SessionID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return r, n + m, err
	}
	n += m
	if r.CycleID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return r, n + m, err
	}
	n += m
	if r.Column, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return r, n + m, err
	}
	n += m
	if r.FieldLabel, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return r, n + m, err
	}
	n += m
	if r.Vector, m, err = vectorMUS.Unmarshal(bs[n:]); err != nil {
		return r, n + m, err
	}
	n += m
	if r.Text, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return r, n + m, err
	}
	n += m
	if r.Version, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return r, n + m, err
	}
	n += m
	if r.CreatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return r, n + m, err
	}
	n += m
	return r, n, nil
}

func (embeddingRecordSer) Size(r EmbeddingRecord) (size int) {
	size = varint.Uint64.Size(uint64(r.Id))
	size += ord.String.Size(r.Key)
	size += ord.String.Size(string(r.Level))
	size += ord.String.Size(r.SessionID)
	size += ord.String.Size(r.CycleID)
	size += ord.String.Size(r.Column)
	size += ord.String.Size(r.FieldLabel)
	size += vectorMUS.Size(r.Vector)
	size += ord.String.Size(r.Text)
	size += varint.Int.Size(r.Version)
	size += sizeTime(r.CreatedAt)
	return size
}
