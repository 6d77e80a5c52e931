package attendance

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var sample = []Record{
	{Date: "2026-10-19", StaffID: "guru01", CheckIn: "06:59:59", CheckOut: "15:00:00", Status: StatusPresent},
	{Date: "2026-10-19", StaffID: "guru02", CheckIn: "07:20:00", Status: StatusLate},
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sample))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, []string{"2026-10-19", "guru01", "06:59:59", "15:00:00", "PRESENT"}, rows[1])
	assert.Equal(t, "LATE", rows[2][4])
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample))
	assert.Equal(t,
		"date,staff_id,check_in_time,check_out_time,status\n"+
			"2026-10-19,guru01,06:59:59,15:00:00,PRESENT\n"+
			"2026-10-19,guru02,07:20:00,,LATE\n",
		buf.String())
}
