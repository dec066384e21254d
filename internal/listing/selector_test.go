package listing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"quotearchiver/internal/model"
	"quotearchiver/internal/testutil"
)

const (
	listingURL = "https://broker.test/Mercado/Cotizaciones"
	heading    = "Acciones Argentina - Panel CEDEARs"
)

var testOptions = Options{
	URL:      listingURL,
	Panel:    "CEDEARs",
	Heading:  heading,
	PageSize: "Todo",
	Timeout:  time.Second,

	SettleInterval: time.Millisecond,
}

func headerRow(symbol, volume string) *testutil.FakeElement {
	cells := make([]*testutil.FakeElement, 13)
	for i := range cells {
		cells[i] = testutil.Cell(fmt.Sprintf("col%d", i))
	}
	cells[symbolIndex] = testutil.Cell(symbol)
	cells[volumeIndex] = testutil.Cell(volume)
	return testutil.Row(cells...)
}

func dataRow(name, volume string) *testutil.FakeElement {
	cells := make([]*testutil.FakeElement, 13)
	for i := range cells {
		cells[i] = testutil.Cell("0,00")
	}
	cells[symbolIndex] = testutil.LinkCell(name+"\nCEDEAR "+name, "https://broker.test/titulo/cotizacion/BCBA/"+name+"/Index/1")
	cells[volumeIndex] = testutil.Cell(volume)
	return testutil.Row(cells...)
}

func summaryRow() *testutil.FakeElement {
	return testutil.Row(testutil.Cell("Total"))
}

// newListing serves a listing whose heading only appears once the panel is
// picked.
func newListing(rows ...*testutil.FakeElement) *testutil.FakeBrowser {
	doc := &testutil.FakeDocument{
		Elements: map[string]*testutil.FakeElement{
			headingSelector:  {TextValue: "Cotizaciones"},
			pageSizeSelector: {},
			tableSelector:    {Kids: map[string][]*testutil.FakeElement{rowSelector: rows}},
		},
		Options: map[string][]string{
			panelSelector:    {"Merval", "CEDEARs", "Bonos"},
			pageSizeSelector: {"10", "25", "Todo"},
		},
	}
	b := testutil.NewFakeBrowser(map[string]*testutil.FakeDocument{listingURL: doc})
	b.OnSelect = func(doc *testutil.FakeDocument, selector, text string) {
		if selector == panelSelector {
			doc.Elements[headingSelector].TextValue = "Acciones Argentina - Panel " + text
		}
	}
	return b
}

func fullListing(n int) []*testutil.FakeElement {
	rows := []*testutil.FakeElement{headerRow(SymbolLabel, VolumeLabel)}
	for i := 0; i < n; i++ {
		rows = append(rows, dataRow(fmt.Sprintf("S%02d", i), fmt.Sprintf("%d.000", i+1)))
	}
	return append(rows, summaryRow())
}

func TestSelect_ReturnsMinOfRowsAndLimit(t *testing.T) {
	for _, n := range []int{0, 1, 14, 15, 16, 40} {
		t.Run(fmt.Sprintf("%d rows", n), func(t *testing.T) {
			b := newListing(fullListing(n)...)

			wl, err := NewSelector(b.Open, testOptions).Select(context.Background())
			if err != nil {
				t.Fatalf("Select() returned unexpected error: %v", err)
			}
			if want := min(n, DefaultLimit); len(wl) != want {
				t.Errorf("len(watchlist) = %d, want %d", len(wl), want)
			}
			if wl == nil {
				t.Error("watchlist is nil, want empty slice")
			}
			if b.Leaked() != 0 {
				t.Errorf("%d browser sessions left open", b.Leaked())
			}
		})
	}
}

func TestSelect_KeepsHighestVolumes(t *testing.T) {
	rows := []*testutil.FakeElement{headerRow(SymbolLabel, VolumeLabel)}
	volumes := map[string]string{"LOW": "5", "MID": "1.000", "TOP": "2.500.000", "ZERO": "0"}
	for _, name := range []string{"LOW", "TOP", "ZERO", "MID"} {
		rows = append(rows, dataRow(name, volumes[name]))
	}
	rows = append(rows, summaryRow())

	opts := testOptions
	opts.Limit = 2
	wl, err := NewSelector(newListing(rows...).Open, opts).Select(context.Background())
	if err != nil {
		t.Fatalf("Select() returned unexpected error: %v", err)
	}

	want := model.Watchlist{
		{Name: "MID", Href: "https://broker.test/titulo/cotizacion/BCBA/MID/Index/1"},
		{Name: "TOP", Href: "https://broker.test/titulo/cotizacion/BCBA/TOP/Index/1"},
	}
	if diff := cmp.Diff(want, wl); diff != "" {
		t.Errorf("watchlist mismatch (-want +got):\n%s", diff)
	}
}

func TestSelect_DrivesTheSourcePage(t *testing.T) {
	b := newListing(fullListing(3)...)

	if _, err := NewSelector(b.Open, testOptions).Select(context.Background()); err != nil {
		t.Fatalf("Select() returned unexpected error: %v", err)
	}

	if diff := cmp.Diff([]string{listingURL}, b.Navigations); diff != "" {
		t.Errorf("navigations mismatch (-want +got):\n%s", diff)
	}
	wantSel := []string{panelSelector + "=CEDEARs", pageSizeSelector + "=Todo"}
	if diff := cmp.Diff(wantSel, b.Selections); diff != "" {
		t.Errorf("selections mismatch (-want +got):\n%s", diff)
	}
	if len(b.Waits) == 0 || b.Waits[0].Text != heading {
		t.Errorf("first wait = %+v, want heading %q", b.Waits, heading)
	}
}

func TestSelect_HeaderMismatch(t *testing.T) {
	tests := []struct {
		name   string
		header *testutil.FakeElement
	}{
		{"symbol label", headerRow("Simbolo", VolumeLabel)},
		{"volume label", headerRow(SymbolLabel, "Monto Operado")},
		{"too few columns", testutil.Row(testutil.Cell(SymbolLabel), testutil.Cell(VolumeLabel))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := dataRow("AAPL", "1.000")
			b := newListing(tt.header, row, summaryRow())

			_, err := NewSelector(b.Open, testOptions).Select(context.Background())
			if !errors.Is(err, model.ErrSchemaMismatch) {
				t.Fatalf("Select() error = %v, want ErrSchemaMismatch", err)
			}
			for i, cell := range row.Kids[cellSelector] {
				if cell.TextReads != 0 {
					t.Errorf("data cell %d read %d times after header mismatch", i, cell.TextReads)
				}
			}
			if b.Leaked() != 0 {
				t.Errorf("%d browser sessions left open", b.Leaked())
			}
		})
	}
}

func TestSelect_EmptyTable(t *testing.T) {
	b := newListing()

	_, err := NewSelector(b.Open, testOptions).Select(context.Background())
	if !errors.Is(err, model.ErrSchemaMismatch) {
		t.Errorf("Select() error = %v, want ErrSchemaMismatch", err)
	}
}

func TestSelect_RowErrors(t *testing.T) {
	noLink := dataRow("KO", "10")
	noLink.Kids[cellSelector][symbolIndex] = testutil.Cell("KO")

	emptyHref := dataRow("KO", "10")
	emptyHref.Kids[cellSelector][symbolIndex] = testutil.LinkCell("KO", "")

	tests := []struct {
		name string
		row  *testutil.FakeElement
		want error
	}{
		{"missing link", noLink, model.ErrLinkNotFound},
		{"empty href", emptyHref, model.ErrLinkNotFound},
		{"empty symbol", dataRow("", "10"), model.ErrEmptySymbol},
		{"bad volume", dataRow("KO", "1,5"), model.ErrInvalidVolume},
		{"short row", testutil.Row(testutil.Cell("KO")), model.ErrElementNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newListing(headerRow(SymbolLabel, VolumeLabel), dataRow("AAPL", "1"), tt.row, summaryRow())

			_, err := NewSelector(b.Open, testOptions).Select(context.Background())
			if !errors.Is(err, tt.want) {
				t.Fatalf("Select() error = %v, want %v", err, tt.want)
			}
			if b.Leaked() != 0 {
				t.Errorf("%d browser sessions left open", b.Leaked())
			}
		})
	}
}

func TestSelect_HeadingTimeout(t *testing.T) {
	b := newListing(fullListing(2)...)
	b.OnSelect = nil

	_, err := NewSelector(b.Open, testOptions).Select(context.Background())
	if !errors.Is(err, model.ErrTimeout) {
		t.Fatalf("Select() error = %v, want ErrTimeout", err)
	}
	if b.Leaked() != 0 {
		t.Errorf("%d browser sessions left open", b.Leaked())
	}
}

func TestSelect_MissingPanelOption(t *testing.T) {
	b := newListing(fullListing(2)...)

	opts := testOptions
	opts.Panel = "Opciones"
	_, err := NewSelector(b.Open, opts).Select(context.Background())
	if !errors.Is(err, model.ErrElementNotFound) {
		t.Fatalf("Select() error = %v, want ErrElementNotFound", err)
	}
}

func TestSelect_OpenFailure(t *testing.T) {
	b := newListing()
	b.OpenErr = errors.New("chrome not found")

	_, err := NewSelector(b.Open, testOptions).Select(context.Background())
	if err == nil {
		t.Fatal("Select() expected error, got nil")
	}
	if b.Navigations != nil {
		t.Errorf("navigated without a session: %v", b.Navigations)
	}
}

func TestRank_StableAmongTies(t *testing.T) {
	rows := []model.ListingRow{
		{Instrument: model.Instrument{Name: "A"}, Volume: 7},
		{Instrument: model.Instrument{Name: "B"}, Volume: 3},
		{Instrument: model.Instrument{Name: "C"}, Volume: 7},
		{Instrument: model.Instrument{Name: "D"}, Volume: 7},
		{Instrument: model.Instrument{Name: "E"}, Volume: 9},
	}

	got := Rank(rows, 3)
	want := model.Watchlist{{Name: "C"}, {Name: "D"}, {Name: "E"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Rank() mismatch (-want +got):\n%s", diff)
	}

	if rows[0].Name != "A" || rows[1].Name != "B" {
		t.Error("Rank() reordered its input")
	}
}

func TestRank_Empty(t *testing.T) {
	got := Rank(nil, DefaultLimit)
	if got == nil || len(got) != 0 {
		t.Errorf("Rank(nil) = %#v, want empty watchlist", got)
	}
}

func TestParseVolume(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"0", 0, false},
		{"999", 999, false},
		{"1.234", 1234, false},
		{"12.345.678.901", 12345678901, false},
		{"", 0, true},
		{"1,5", 0, true},
		{"-", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVolume(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseVolume(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseVolume(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestSelect_WaitsForRedrawAfterPageSize(t *testing.T) {
	full := fullListing(20)
	paged := append(append([]*testutil.FakeElement{}, full[:11]...), summaryRow())
	b := newListing(paged...)

	// The full listing shows up two reads after the page-size change.
	table := b.Docs[listingURL].Elements[tableSelector]
	reads := 0
	table.OnChildren = func(e *testutil.FakeElement) {
		reads++
		if reads == 2 {
			e.Kids[rowSelector] = full
		}
	}

	wl, err := NewSelector(b.Open, testOptions).Select(context.Background())
	if err != nil {
		t.Fatalf("Select() returned unexpected error: %v", err)
	}
	if len(wl) != DefaultLimit {
		t.Fatalf("len(watchlist) = %d, want %d", len(wl), DefaultLimit)
	}
	if got := wl[len(wl)-1].Name; got != "S19" {
		t.Errorf("top instrument = %q, want S19 from the redrawn table", got)
	}
	if reads < 3 {
		t.Errorf("table read %d times, want a stable reread after the redraw", reads)
	}
}

func TestSelect_RedrawNeverSettles(t *testing.T) {
	b := newListing(fullListing(3)...)
	table := b.Docs[listingURL].Elements[tableSelector]
	table.OnChildren = func(e *testutil.FakeElement) {
		e.Kids[rowSelector] = append(e.Kids[rowSelector], dataRow("NEW", "1"))
	}

	opts := testOptions
	opts.Timeout = 20 * time.Millisecond
	_, err := NewSelector(b.Open, opts).Select(context.Background())
	if !errors.Is(err, model.ErrTimeout) {
		t.Errorf("Select() error = %v, want ErrTimeout", err)
	}
	if b.Leaked() != 0 {
		t.Errorf("%d browser sessions left open", b.Leaked())
	}
}
