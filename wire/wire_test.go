package wire_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/type/date"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/syssam/pgproto/wire"
)

func TestUUID(t *testing.T) {
	id := uuid.MustParse("00112233-4455-6677-8899-aabbccddeeff")

	b := wire.UUIDBytes(id)
	assert.Equal(t, []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}, b)

	hi, lo := wire.UUIDHalves(id)
	assert.Equal(t, uint64(0x0011223344556677), hi)
	assert.Equal(t, uint64(0x8899aabbccddeeff), lo)
	assert.Equal(t, id, wire.UUIDFromHalves(hi, lo))

	v, err := wire.UUID(b).Value()
	require.NoError(t, err)
	assert.Equal(t, id.String(), v)

	v, err = wire.UUID(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = wire.UUID([]byte{1, 2, 3}).Value()
	assert.Error(t, err)

	av, err := wire.UUIDs(wire.UUIDBytesSlice([]uuid.UUID{id, uuid.Nil})).Value()
	require.NoError(t, err)
	assert.Equal(t, `{"00112233-4455-6677-8899-aabbccddeeff","00000000-0000-0000-0000-000000000000"}`, av)

	av, err = wire.UUIDs(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", av)

	_, err = wire.UUIDs([][]byte{{1}}).Value()
	assert.Error(t, err)
}

func TestDate(t *testing.T) {
	d := wire.Date(time.Date(2024, time.February, 29, 23, 59, 0, 0, time.UTC))
	assert.Equal(t, int32(2024), d.GetYear())
	assert.Equal(t, int32(2), d.GetMonth())
	assert.Equal(t, int32(29), d.GetDay())

	v, err := wire.DateOf(d).Value()
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", v)

	v, err = wire.DateOf(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = wire.DateOf(&date.Date{Year: 2024}).Value()
	assert.Error(t, err)
}

func TestTimestamp(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 30, 15, 123456789, time.FixedZone("x", 2*3600))
	ts := wire.Timestamp(at)
	assert.Equal(t, int32(123456789), ts.GetNanos())

	v, err := wire.TimestampOf(ts).Value()
	require.NoError(t, err)
	assert.True(t, at.Equal(v.(time.Time)))

	v, err = wire.TimestampOf(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = wire.TimestampOf(&timestamppb.Timestamp{Nanos: -1}).Value()
	assert.Error(t, err)
}

func TestArray(t *testing.T) {
	v, err := wire.Array([]int64{1, 2}).Value()
	require.NoError(t, err)
	assert.Equal(t, "{1,2}", v)

	v, err = wire.Array([]string{"a", "b c"}).Value()
	require.NoError(t, err)
	assert.Equal(t, `{"a","b c"}`, v)

	t.Run("nil slices bind the empty array", func(t *testing.T) {
		for _, a := range []any{[]string(nil), []int64(nil), []int32(nil), []float64(nil), []bool(nil), []string{}} {
			v, err := wire.Array(a).Value()
			require.NoError(t, err)
			assert.Equal(t, "{}", v, "%T", a)
		}
	})
}
