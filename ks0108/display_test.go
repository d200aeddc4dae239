package ks0108

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/glcd"
	"github.com/mklimuk/glcd/sim"
)

func newTestDev(t *testing.T, opts ...Opt) (*Dev, *sim.Panel) {
	t.Helper()
	panel := sim.New()
	d, err := New(context.Background(), panel.Pins(), opts...)
	require.NoError(t, err)
	require.Empty(t, panel.Violations())
	panel.ClearLog()
	return d, panel
}

// trace renders events without the levels of reads, which depend on the
// panel state.
func trace(events []sim.Event) []string {
	res := make([]string, 0, len(events))
	for _, e := range events {
		if e.Op == sim.OpRead {
			res = append(res, e.Line+":read")
			continue
		}
		res = append(res, e.String())
	}
	return res
}

func pageSelects(transfers []sim.Transfer) int {
	n := 0
	for _, tr := range transfers {
		if !tr.Data && tr.Value&0xF8 == cmdSetPage {
			n++
		}
	}
	return n
}

func dataWrites(transfers []sim.Transfer) int {
	n := 0
	for _, tr := range transfers {
		if tr.Data {
			n++
		}
	}
	return n
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	panel := sim.New()
	_, err := New(ctx, panel.Pins())
	require.NoError(t, err)
	assert.Empty(t, panel.Violations())
	assert.Empty(t, panel.Transfers(), "initialization must not latch anything")

	events := trace(panel.Events())
	require.GreaterOrEqual(t, len(events), 2)
	assert.Equal(t, []string{"RST:out:Low", "RST:out:High"}, events[len(events)-2:])
	assert.Contains(t, events, "CS1:out:High")
	assert.Contains(t, events, "CS2:out:High")
	assert.Contains(t, events, "E:out:High")
	assert.False(t, panel.DisplayOn(0))
	assert.False(t, panel.DisplayOn(1))
}

func TestNew_MissingLine(t *testing.T) {
	pins := sim.New().Pins()
	pins.DB[3] = nil
	_, err := New(context.Background(), pins)
	assert.ErrorIs(t, err, glcd.ErrMissingLine)
}

func TestSetDirection_Ordering(t *testing.T) {
	ctx := context.Background()
	panel := sim.New()
	b := bus{pins: panel.Pins()}

	require.NoError(t, b.setDirection(ctx, Read))
	assert.Equal(t, []string{
		"DB0:in", "DB1:in", "DB2:in", "DB3:in", "DB4:in", "DB5:in", "DB6:in", "DB7:in",
		"RW:out:High",
	}, trace(panel.Events()))

	panel.ClearLog()
	require.NoError(t, b.setDirection(ctx, Write))
	assert.Equal(t, []string{
		"RW:out:Low",
		"DB0:out:Low", "DB1:out:Low", "DB2:out:Low", "DB3:out:Low",
		"DB4:out:Low", "DB5:out:Low", "DB6:out:Low", "DB7:out:Low",
	}, trace(panel.Events()))
	assert.Empty(t, panel.Violations())
}

func TestWriteByte(t *testing.T) {
	ctx := context.Background()
	panel := sim.New()
	b := bus{pins: panel.Pins()}

	require.NoError(t, b.writeByte(ctx, 0xA5))
	events := trace(panel.Events())
	require.Len(t, events, 17)
	assert.Equal(t, []string{
		"DB0:out:High", "DB1:out:Low", "DB2:out:High", "DB3:out:Low",
		"DB4:out:Low", "DB5:out:High", "DB6:out:Low", "DB7:out:High",
	}, events[9:])
}

func TestWriteData_Trace(t *testing.T) {
	ctx := context.Background()
	d, panel := newTestDev(t)
	require.NoError(t, d.WriteData(ctx, 0x81))
	assert.Equal(t, []string{
		"DI:out:High",
		"RW:out:Low",
		"DB0:out:Low", "DB1:out:Low", "DB2:out:Low", "DB3:out:Low",
		"DB4:out:Low", "DB5:out:Low", "DB6:out:Low", "DB7:out:Low",
		"DB0:out:High", "DB1:out:Low", "DB2:out:Low", "DB3:out:Low",
		"DB4:out:Low", "DB5:out:Low", "DB6:out:Low", "DB7:out:High",
		"E:out:Low", "E:out:High",
	}, trace(panel.Events()))
	assert.Empty(t, panel.Violations())
}

func TestStrobe(t *testing.T) {
	ctx := context.Background()
	panel := sim.New()
	b := bus{pins: panel.Pins()}
	require.NoError(t, b.strobe(ctx))
	assert.Equal(t, []string{"E:out:Low", "E:out:High"}, trace(panel.Events()))
}

func TestSelectChips_ReadsStatusFirst(t *testing.T) {
	d, panel := newTestDev(t)
	require.NoError(t, d.selectChips(context.Background(), true, false))
	assert.Equal(t, []string{
		"DB0:in", "DB1:in", "DB2:in", "DB3:in", "DB4:in", "DB5:in", "DB6:in", "DB7:in",
		"RW:out:High",
		"DI:out:Low",
		"DB5:read", "DB4:read", "DB7:read",
		"CS1:out:High",
		"CS2:out:Low",
	}, trace(panel.Events()))
}

func TestSetChipCursor_Clamps(t *testing.T) {
	tests := []struct {
		name     string
		row, x   int
		wantPage byte
		wantAddr byte
	}{
		{"in range", 3, 10, 0xBB, 0x4A},
		{"last", 7, 63, 0xBF, 0x7F},
		{"over", 9, 70, 0xBF, 0x7F},
		{"negative", -1, -5, 0xB8, 0x40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, panel := newTestDev(t)
			require.NoError(t, d.setChipCursor(context.Background(), tt.row, tt.x))
			transfers := panel.Transfers()
			require.Len(t, transfers, 2)
			assert.Equal(t, tt.wantPage, transfers[0].Value)
			assert.Equal(t, tt.wantAddr, transfers[1].Value)
			assert.False(t, transfers[0].Data)
			assert.False(t, transfers[1].Data)
		})
	}
}

func TestSetLogicalCursor(t *testing.T) {
	tests := []struct {
		name      string
		legacy    bool
		row, x    int
		wantChips uint8
		wantAddr  byte
	}{
		{"left chip", false, 2, 10, 1, 0x4A},
		{"left edge", false, 2, 63, 1, 0x7F},
		{"right chip", false, 2, 64, 2, 0x40},
		{"right chip offset", false, 2, 70, 2, 0x46},
		{"clamped to panel edge", false, 2, 200, 2, 0x7F},
		{"legacy clamp to left chip", true, 2, 200, 1, 0x7F},
		{"legacy in range unchanged", true, 2, 70, 2, 0x46},
		{"negative", false, 2, -3, 1, 0x40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Opt
			if tt.legacy {
				opts = append(opts, WithLegacyClamp())
			}
			d, panel := newTestDev(t, opts...)
			require.NoError(t, d.setLogicalCursor(context.Background(), tt.row, tt.x))
			transfers := panel.Transfers()
			require.Len(t, transfers, 2)
			assert.Equal(t, tt.wantChips, transfers[0].Chips)
			assert.Equal(t, cmdSetPage|byte(tt.row), transfers[0].Value)
			assert.Equal(t, tt.wantAddr, transfers[1].Value)
		})
	}
}

func TestWriteRow_CrossesChipBoundary(t *testing.T) {
	ctx := context.Background()
	d, panel := newTestDev(t)
	require.NoError(t, d.ClearScreen(ctx))
	panel.ClearLog()

	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	require.NoError(t, d.WriteRow(ctx, 0, 60, data))

	for i := 0; i < 4; i++ {
		assert.Equal(t, data[i], panel.Memory(0, 0, 60+i), "left chip column %d", 60+i)
		assert.Equal(t, data[4+i], panel.Memory(1, 0, i), "right chip column %d", i)
	}
	assert.Equal(t, byte(0), panel.Memory(1, 0, 4))
	assert.Equal(t, byte(0), panel.Memory(0, 0, 0), "left chip must not wrap")

	transfers := panel.Transfers()
	assert.Equal(t, 2, pageSelects(transfers))
	// the re-addressing happens exactly between the 4th and 5th data byte
	var seen int
	for _, tr := range transfers {
		if tr.Data {
			seen++
			continue
		}
		if tr.Value&0xF8 == cmdSetPage && seen > 0 {
			assert.Equal(t, 4, seen)
			assert.Equal(t, uint8(2), tr.Chips)
		}
	}
	assert.Empty(t, panel.Violations())
}

func TestWriteRow_AddressingCount(t *testing.T) {
	tests := []struct {
		name  string
		x     int
		count int
		want  int
	}{
		{"whole left half", 0, 64, 1},
		{"inside left half", 10, 20, 1},
		{"starts on right half", 64, 10, 1},
		{"whole right half", 64, 64, 1},
		{"crossing", 10, 100, 2},
		{"full row", 0, 128, 2},
		{"ends on boundary", 60, 4, 1},
		{"starts one before boundary", 63, 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, panel := newTestDev(t)
			require.NoError(t, d.WriteRow(context.Background(), 1, tt.x, make([]byte, tt.count)))
			transfers := panel.Transfers()
			assert.Equal(t, tt.want, pageSelects(transfers))
			assert.Equal(t, tt.count, dataWrites(transfers))
		})
	}
}

func TestWriteRow_NoOp(t *testing.T) {
	tests := []struct {
		name   string
		row, x int
	}{
		{"row past end", RowCount, 0},
		{"row far past end", 100, 0},
		{"negative row", -1, 0},
		{"offset past end", 0, Width},
		{"negative offset", 0, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			d, panel := newTestDev(t)
			before := panel.Frame()
			require.NoError(t, d.WriteRow(ctx, tt.row, tt.x, []byte{0xFF, 0xFF}))
			require.NoError(t, d.FillRow(ctx, tt.row, tt.x, 2, 0xFF))
			assert.Empty(t, panel.Events())
			assert.Equal(t, before, panel.Frame())
		})
	}
}

func TestWriteRow_ClampsCount(t *testing.T) {
	ctx := context.Background()
	d, panel := newTestDev(t)
	require.NoError(t, d.ClearScreen(ctx))
	panel.ClearLog()

	data := make([]byte, 50)
	for i := range data {
		data[i] = byte(i + 1)
	}
	require.NoError(t, d.WriteRow(ctx, 3, 120, data))
	assert.Equal(t, Width-120, dataWrites(panel.Transfers()))
	for i := 0; i < 8; i++ {
		assert.Equal(t, data[i], panel.Byte(3, 120+i))
	}
	assert.Equal(t, byte(0), panel.Byte(3, 0))
	assert.Equal(t, byte(0), panel.Byte(3, 64))
}

func TestFillRow(t *testing.T) {
	ctx := context.Background()
	d, panel := newTestDev(t)
	require.NoError(t, d.ClearScreen(ctx))
	panel.ClearLog()

	require.NoError(t, d.FillRow(ctx, 5, 60, 10, 0x81))
	assert.Equal(t, 2, pageSelects(panel.Transfers()))
	assert.Equal(t, 10, dataWrites(panel.Transfers()))
	for x := 0; x < Width; x++ {
		want := byte(0)
		if x >= 60 && x < 70 {
			want = 0x81
		}
		assert.Equal(t, want, panel.Byte(5, x), "column %d", x)
	}

	panel.ClearLog()
	require.NoError(t, d.FillRow(ctx, 6, 100, 1000, 0xFF))
	assert.Equal(t, Width-100, dataWrites(panel.Transfers()))

	panel.ClearLog()
	require.NoError(t, d.FillRow(ctx, 6, 0, 0, 0xFF))
	assert.Empty(t, panel.Transfers())
}

func testImage() []byte {
	img := make([]byte, ImageSize)
	for row := 0; row < RowCount; row++ {
		for x := 0; x < Width; x++ {
			img[row*Width+x] = byte(row*31 + x)
		}
	}
	return img
}

func TestWriteImage(t *testing.T) {
	ctx := context.Background()
	d, panel := newTestDev(t)
	img := testImage()
	require.NoError(t, d.WriteImage(ctx, img))
	assert.Equal(t, img, panel.Frame())
	assert.Empty(t, panel.Violations())
}

func TestWriteImage_ShortBuffer(t *testing.T) {
	ctx := context.Background()
	d, panel := newTestDev(t)
	require.NoError(t, d.ClearScreen(ctx))
	img := testImage()
	require.NoError(t, d.WriteImage(ctx, img[:3*Width+10]))

	frame := panel.Frame()
	assert.Equal(t, img[:3*Width+10], frame[:3*Width+10])
	assert.Equal(t, make([]byte, ImageSize-3*Width-10), frame[3*Width+10:])
}

func TestClearScreen_Idempotent(t *testing.T) {
	ctx := context.Background()
	a, panelA := newTestDev(t)
	b, panelB := newTestDev(t)

	require.NoError(t, a.WriteImage(ctx, testImage()))
	require.NoError(t, a.WriteImage(ctx, make([]byte, ImageSize)))
	require.NoError(t, a.ClearScreen(ctx))

	require.NoError(t, b.WriteImage(ctx, testImage()))
	require.NoError(t, b.ClearScreen(ctx))

	assert.Equal(t, panelB.Frame(), panelA.Frame())
	assert.Equal(t, make([]byte, ImageSize), panelA.Frame())
}

func TestSetVerticalScroll(t *testing.T) {
	tests := []struct {
		offset int
		want   int
	}{
		{0, 0},
		{1, 1},
		{63, 63},
		{64, 0},
		{65, 1},
		{200, 8},
		{-1, 63},
		{-64, 0},
		{-65, 63},
		{-128, 0},
	}
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.offset), func(t *testing.T) {
			d, panel := newTestDev(t)
			require.NoError(t, d.SetVerticalScroll(context.Background(), tt.offset))
			assert.Equal(t, tt.want, panel.StartLine(0))
			assert.Equal(t, tt.want, panel.StartLine(1))
			transfers := panel.Transfers()
			require.Len(t, transfers, 1)
			assert.Equal(t, uint8(3), transfers[0].Chips)
			assert.Equal(t, cmdStartLine|byte(tt.want), transfers[0].Value)
		})
	}
}

func TestDisplayOnOff(t *testing.T) {
	ctx := context.Background()
	d, panel := newTestDev(t)

	on, err := d.IsDisplayOn(ctx)
	require.NoError(t, err)
	assert.False(t, on)

	require.NoError(t, d.SetDisplayOn(ctx, true))
	assert.True(t, panel.DisplayOn(0))
	assert.True(t, panel.DisplayOn(1))
	on, err = d.IsDisplayOn(ctx)
	require.NoError(t, err)
	assert.True(t, on)

	st, err := d.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, Status{DisplayOn: true}, st)

	require.NoError(t, d.SetDisplayOn(ctx, false))
	on, err = d.IsDisplayOn(ctx)
	require.NoError(t, err)
	assert.False(t, on)
}

func TestSetCursorAndWriteData(t *testing.T) {
	tests := []struct {
		name     string
		legacy   bool
		wantChip int
	}{
		{"panel edge", false, 1},
		{"legacy", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			var opts []Opt
			if tt.legacy {
				opts = append(opts, WithLegacyClamp())
			}
			d, panel := newTestDev(t, opts...)
			require.NoError(t, d.SetCursor(ctx, 4, 500))
			require.NoError(t, d.WriteData(ctx, 0xAA))
			assert.Equal(t, byte(0xAA), panel.Memory(tt.wantChip, 4, ChipWidth-1))
		})
	}
}

func TestTestPattern(t *testing.T) {
	ctx := context.Background()
	d, panel := newTestDev(t, WithTestPatternStep(0))
	require.NoError(t, d.TestPattern(ctx))

	for chip := 0; chip < 2; chip++ {
		for page := 0; page < RowCount; page++ {
			for x := 0; x < ChipWidth; x++ {
				assert.Equal(t, byte(x)|byte(page&0x03)<<6, panel.Memory(chip, page, x))
			}
		}
		assert.Equal(t, 0, panel.StartLine(chip))
	}
	var lines []byte
	for _, tr := range panel.Transfers() {
		if !tr.Data && tr.Value&0xC0 == cmdStartLine {
			lines = append(lines, tr.Value&0x3F)
		}
	}
	require.Len(t, lines, 33)
	assert.Equal(t, byte(31), lines[31])
	assert.Equal(t, byte(0), lines[32])
	assert.Empty(t, panel.Violations())
}

func TestTestPattern_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d, _ := newTestDev(t, WithTestPatternStep(time.Hour))
	err := d.TestPattern(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNoBusContention(t *testing.T) {
	ctx := context.Background()
	d, panel := newTestDev(t)
	require.NoError(t, d.SetDisplayOn(ctx, true))
	require.NoError(t, d.ClearScreen(ctx))
	require.NoError(t, d.WriteRow(ctx, 2, 30, make([]byte, 90)))
	require.NoError(t, d.FillRow(ctx, 7, 0, Width, 0x55))
	require.NoError(t, d.SetVerticalScroll(ctx, -10))
	_, err := d.IsDisplayOn(ctx)
	require.NoError(t, err)
	require.NoError(t, d.WriteImage(ctx, testImage()))
	assert.Empty(t, panel.Violations())
}

// MockLine is a glcd.Line driven by testify expectations.
type MockLine struct {
	mock.Mock
}

func (m *MockLine) Out(ctx context.Context, level glcd.Level) error {
	args := m.Called(ctx, level)
	return args.Error(0)
}

func (m *MockLine) In(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockLine) Read(ctx context.Context) (glcd.Level, error) {
	args := m.Called(ctx)
	return args.Get(0).(glcd.Level), args.Error(1)
}

func TestBusErrorsAreWrapped(t *testing.T) {
	ctx := context.Background()
	errLine := errors.New("line fault")

	pins := sim.New().Pins()
	broken := new(MockLine)
	broken.On("In", mock.Anything).Return(errLine)
	broken.On("Out", mock.Anything, mock.Anything).Return(errLine)
	pins.DB[2] = broken
	b := bus{pins: pins}

	err := b.setDirection(ctx, Read)
	assert.ErrorIs(t, err, errLine)
	assert.Contains(t, err.Error(), "data line 2")

	err = b.writeByte(ctx, 0xFF)
	assert.ErrorIs(t, err, errLine)

	_, err = New(ctx, pins)
	assert.ErrorIs(t, err, errLine)
	broken.AssertCalled(t, "In", mock.Anything)
}

func TestStatusRead_Polarity(t *testing.T) {
	ctx := context.Background()
	pins := sim.New().Pins()
	levels := map[int]glcd.Level{
		statusBitOnOff: glcd.High,
		statusBitReset: glcd.High,
		statusBitBusy:  glcd.High,
	}
	for bit, level := range levels {
		m := new(MockLine)
		m.On("In", mock.Anything).Return(nil)
		m.On("Read", mock.Anything).Return(level, nil)
		pins.DB[bit] = m
	}
	b := bus{pins: pins}
	st, err := b.readStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, Status{DisplayOn: false, Resetting: true, Busy: true}, st)
}
