package catalog

import "testing"

// TestParse_ValidJSON は正常なバケット設定のパースを検証する。
func TestParse_ValidJSON(t *testing.T) {
	c, err := Parse(`{"CT1-ICT1": -1001111111111, "CT2-ICT3": -1002222222222}`)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	id, ok := c.ChannelFor("CT1-ICT1")
	if !ok {
		t.Fatal("expected CT1-ICT1 to be configured")
	}
	if id != -1001111111111 {
		t.Errorf("ChannelFor(CT1-ICT1) = %d, want %d", id, int64(-1001111111111))
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

// TestParse_Empty は空文字列が空カタログとして有効なことを検証する。
func TestParse_Empty(t *testing.T) {
	c, err := Parse("")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
	if _, ok := c.ChannelFor("CT1-ICT1"); ok {
		t.Error("empty catalog should not resolve any bucket")
	}
}

// TestParse_InvalidBucketKey は不正なバケットキーが拒否されることを検証する。
func TestParse_InvalidBucketKey(t *testing.T) {
	if _, err := Parse(`{"not-a-bucket": -100}`); err == nil {
		t.Fatal("expected error for invalid bucket key, got nil")
	}
}

// TestParse_InvalidJSON は壊れたJSONが拒否されることを検証する。
func TestParse_InvalidJSON(t *testing.T) {
	if _, err := Parse(`{"CT1-ICT1": `); err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
}

// TestCatalog_ContainsChannel はチャンネルIDの逆引きを検証する。
func TestCatalog_ContainsChannel(t *testing.T) {
	c, err := Parse(`{"CT1-ICT1": -100, "CT1-ICT2": -200}`)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if !c.ContainsChannel(-100) {
		t.Error("ContainsChannel(-100) = false, want true")
	}
	if c.ContainsChannel(-999) {
		t.Error("ContainsChannel(-999) = true, want false")
	}
}

// TestCatalog_Buckets はバケット一覧が昇順で返ることを検証する。
func TestCatalog_Buckets(t *testing.T) {
	c, err := Parse(`{"CT2-ICT1": -1, "CT1-ICT1": -2, "CT1-ICT2": -3}`)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	got := c.Buckets()
	want := []string{"CT1-ICT1", "CT1-ICT2", "CT2-ICT1"}
	if len(got) != len(want) {
		t.Fatalf("Buckets() length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Buckets()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
