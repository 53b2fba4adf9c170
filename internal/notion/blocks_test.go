package notion

import (
	"strings"
	"testing"
)

func TestSplitTextIntoChunksShortText(t *testing.T) {
	chunks := SplitTextIntoChunks("hello world", 100)
	if len(chunks) != 1 || chunks[0] != "hello world" {
		t.Errorf("expected single chunk, got %v", chunks)
	}
}

func TestSplitTextIntoChunksCeiling(t *testing.T) {
	text := strings.Repeat("word ", 2000)
	chunks := SplitTextIntoChunks(text, 500)
	for i, c := range chunks {
		if len(c) > 500 {
			t.Errorf("chunk %d exceeds ceiling: %d chars", i, len(c))
		}
		if len(c) == 0 {
			t.Errorf("chunk %d is empty", i)
		}
	}
}

func TestSplitTextIntoChunksLossless(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"paragraphs", strings.Repeat("First paragraph here.\n\nSecond paragraph follows.\n\n", 40)},
		{"sentences", strings.Repeat("A sentence ends here. Another one! Is this a question? ", 30)},
		{"words only", strings.Repeat("justwords andmore ", 80)},
		{"no boundaries", strings.Repeat("x", 1500)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := SplitTextIntoChunks(tt.text, 400)
			if got := strings.Join(chunks, ""); got != tt.text {
				t.Errorf("concatenated chunks do not reproduce source (got %d chars, want %d)", len(got), len(tt.text))
			}
			for i, c := range chunks {
				if len(c) > 400 {
					t.Errorf("chunk %d exceeds ceiling: %d chars", i, len(c))
				}
			}
		})
	}
}

func TestSplitTextIntoChunksPrefersParagraphBoundary(t *testing.T) {
	text := strings.Repeat("a", 300) + "\n\n" + strings.Repeat("b", 300)
	chunks := SplitTextIntoChunks(text, 400)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], "\n\n") {
		t.Errorf("first chunk should end at the paragraph boundary, got suffix %q", chunks[0][len(chunks[0])-4:])
	}
}

func TestTextToBlocksStructure(t *testing.T) {
	text := "# Title\n\nSome intro text.\nMore of the same paragraph.\n\n## Section\n- first item\n* second item\n1. numbered one\n2. numbered two"
	blocks := TextToBlocks(text)

	wantTypes := []string{
		"heading_1",
		"paragraph",
		"heading_2",
		"bulleted_list_item",
		"bulleted_list_item",
		"numbered_list_item",
		"numbered_list_item",
	}
	if len(blocks) != len(wantTypes) {
		t.Fatalf("expected %d blocks, got %d", len(wantTypes), len(blocks))
	}
	for i, want := range wantTypes {
		if got := blocks[i]["type"]; got != want {
			t.Errorf("block %d: type = %v, want %s", i, got, want)
		}
	}
}

func TestTextToBlocksAdjacentLinesJoin(t *testing.T) {
	blocks := TextToBlocks("line one\nline two")
	if len(blocks) != 1 {
		t.Fatalf("expected 1 paragraph block, got %d", len(blocks))
	}
	rt := blocks[0]["paragraph"].(map[string]interface{})["rich_text"].([]interface{})
	content := rt[0].(map[string]interface{})["text"].(map[string]interface{})["content"].(string)
	if content != "line one line two" {
		t.Errorf("got %q, want joined lines", content)
	}
}

func TestTextToBlocksEmpty(t *testing.T) {
	if blocks := TextToBlocks(""); blocks != nil {
		t.Errorf("expected nil for empty text, got %v", blocks)
	}
}

func TestParagraphBlockTruncates(t *testing.T) {
	b := paragraphBlock(strings.Repeat("x", MaxBlockTextLen+500))
	rt := b["paragraph"].(map[string]interface{})["rich_text"].([]interface{})
	content := rt[0].(map[string]interface{})["text"].(map[string]interface{})["content"].(string)
	if len(content) > MaxBlockTextLen {
		t.Errorf("truncated content still exceeds ceiling: %d chars", len(content))
	}
	if !strings.HasSuffix(content, "...") {
		t.Errorf("truncated content should end with ellipsis")
	}
}
