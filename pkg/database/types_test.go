package database

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStringArray_ValueScanRoundTrip(t *testing.T) {
	req := require.New(t)

	original := StringArray{"alice", "bob"}
	v, err := original.Value()
	req.NoError(err)
	req.Equal(`["alice","bob"]`, v)

	var scanned StringArray
	req.NoError(scanned.Scan(v))
	req.Equal(original, scanned)
}

func TestStringArray_ScanNil(t *testing.T) {
	req := require.New(t)

	var a StringArray
	req.NoError(a.Scan(nil))
	req.Nil(a)
}

func TestStringArray_NilValue(t *testing.T) {
	req := require.New(t)

	var a StringArray
	v, err := a.Value()
	req.NoError(err)
	req.Nil(v)
}

func TestStringArray_ScanPostgresLiteral(t *testing.T) {
	req := require.New(t)

	var a StringArray
	req.NoError(a.Scan(`{alice,"bob smith"}`))
	req.Equal(StringArray{"alice", "bob smith"}, a)

	var empty StringArray
	req.NoError(empty.Scan("{}"))
	req.Empty(empty)
}

func TestStringArray_ScanBareString(t *testing.T) {
	req := require.New(t)

	var a StringArray
	req.NoError(a.Scan([]byte("alice")))
	req.Equal(StringArray{"alice"}, a)
}
