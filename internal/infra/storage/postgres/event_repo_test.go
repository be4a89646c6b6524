package postgres

import (
	"testing"
	"time"
)

func TestGroupRows_SkipsInvalidRows(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	rows := []eventRow{
		{ChainID: "ethereum", TxHash: "0xa", BlockNumber: 10, Status: true, BlockTime: now, Params: []byte(`{"id":"7"}`)},
		{ChainID: "ethereum", TxHash: "0xbad", BlockNumber: 11, BlockTime: now, Params: []byte(`{not json`)},
		{ChainID: "ethereum", TxHash: "0xbadid", BlockNumber: 12, BlockTime: now, Params: []byte(`{"id":"x1"}`)},
		{ChainID: "polygon", TxHash: "0xb", BlockNumber: 5, BlockTime: now},
	}

	got := groupRows(rows)
	if len(got["ethereum"]) != 1 || got["ethereum"][0].Hash != "0xa" {
		t.Fatalf("expected only 0xa on ethereum, got %+v", got["ethereum"])
	}
	if got["ethereum"][0].Params.ID == nil || got["ethereum"][0].Params.ID.Int64() != 7 {
		t.Errorf("unexpected params %+v", got["ethereum"][0].Params)
	}
	if len(got["polygon"]) != 1 {
		t.Errorf("expected 1 polygon event, got %d", len(got["polygon"]))
	}
}
