package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const sampleSheetCSV = `Gemstone,Carat weight,Single/Pair,Shape,Origin,Treatment,Color,Clarity,Price per ct,Report,Link,Photo,Video
Sapphire,2.05,Single,Oval,Ceylon,None,Blue,Eye clean,1200,GIA,https://example.test/s1,,
Sapphire,n/a,Single,Round,Ceylon,None,Blue,Eye clean,900,,,,
Ruby,1.10,Pair,Cushion,Burma,Heated,Red,VS,2500,GRS,https://example.test/r1,photo.jpg,video.mp4
`

func TestSheetSource_FetchParsesExport(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(sampleSheetCSV))
	}))
	defer server.Close()

	source, err := NewSheetSource(SheetSourceOptions{
		SheetID: "sheet-123",
		GID:     "7",
		BaseURL: server.URL,
		Client:  server.Client(),
	})
	if err != nil {
		t.Fatalf("new sheet source: %v", err)
	}

	items, err := source.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !strings.Contains(gotPath, "/sheet-123/export?format=csv&gid=7") {
		t.Fatalf("unexpected export path %q", gotPath)
	}
	if len(items) != 2 {
		t.Fatalf("expected the unparsable carat row dropped, got %d items", len(items))
	}
	if items[0].Gemstone != "Sapphire" || items[0].CaratWeight != 2.05 {
		t.Fatalf("unexpected first item %+v", items[0])
	}
	if items[1].Kind != "Pair" || items[1].Video != "video.mp4" {
		t.Fatalf("unexpected second item %+v", items[1])
	}
}

func TestSheetSource_FetchRejectsNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	source, err := NewSheetSource(SheetSourceOptions{
		SheetID: "sheet-123",
		BaseURL: server.URL,
		Client:  server.Client(),
	})
	if err != nil {
		t.Fatalf("new sheet source: %v", err)
	}
	if _, err := source.Fetch(context.Background()); err == nil {
		t.Fatalf("expected error for non-200 export response")
	}
}

func TestDecodeItems_MapsColumnsByHeaderName(t *testing.T) {
	reordered := `Single/Pair,Gemstone,Carat weight
Single,Tourmaline,3.3
`
	items, skipped, err := decodeItems(strings.NewReader(reordered))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if skipped != 0 {
		t.Fatalf("expected no skipped rows, got %d", skipped)
	}
	if len(items) != 1 || items[0].Gemstone != "Tourmaline" || items[0].Kind != "Single" {
		t.Fatalf("expected header-mapped row, got %+v", items)
	}

	items, _, err = decodeItems(strings.NewReader(""))
	if err != nil {
		t.Fatalf("decode empty: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no items from empty export, got %d", len(items))
	}
}
