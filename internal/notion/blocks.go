package notion

import (
	"regexp"
	"strings"
)

// MaxBlockTextLen is the provider's per-block character ceiling.
const MaxBlockTextLen = 2000

// paragraphAccumLimit keeps accumulated paragraphs comfortably under the
// ceiling before a flush.
const paragraphAccumLimit = 1900

// Block is one Notion content block in wire format.
type Block map[string]interface{}

func richText(content string) []interface{} {
	return []interface{}{
		map[string]interface{}{"text": map[string]interface{}{"content": content}},
	}
}

func boldText(bold, rest string) []interface{} {
	return []interface{}{
		map[string]interface{}{
			"type":        "text",
			"text":        map[string]interface{}{"content": bold},
			"annotations": map[string]interface{}{"bold": true},
		},
		map[string]interface{}{
			"type": "text",
			"text": map[string]interface{}{"content": rest},
		},
	}
}

func paragraphBlock(text string) Block {
	if len(text) > MaxBlockTextLen {
		text = text[:MaxBlockTextLen-3] + "..."
	}
	return Block{
		"object":    "block",
		"type":      "paragraph",
		"paragraph": map[string]interface{}{"rich_text": richText(text)},
	}
}

func headingBlock(level int, text string) Block {
	key := "heading_1"
	switch level {
	case 2:
		key = "heading_2"
	case 3:
		key = "heading_3"
	}
	return Block{
		"object": "block",
		"type":   key,
		key:      map[string]interface{}{"rich_text": richText(text)},
	}
}

func bulletBlock(text string) Block {
	return Block{
		"object":             "block",
		"type":               "bulleted_list_item",
		"bulleted_list_item": map[string]interface{}{"rich_text": richText(text)},
	}
}

func numberedBlock(text string) Block {
	return Block{
		"object":             "block",
		"type":               "numbered_list_item",
		"numbered_list_item": map[string]interface{}{"rich_text": richText(text)},
	}
}

func quoteBlock(text string) Block {
	return Block{
		"object": "block",
		"type":   "quote",
		"quote":  map[string]interface{}{"rich_text": richText(text)},
	}
}

func dividerBlock() Block {
	return Block{"object": "block", "type": "divider", "divider": map[string]interface{}{}}
}

func toggleBlock(title string, children []Block) Block {
	return Block{
		"object": "block",
		"type":   "toggle",
		"toggle": map[string]interface{}{
			"rich_text": richText(title),
			"children":  children,
		},
	}
}

var numberedItemRe = regexp.MustCompile(`^\d+\.\s`)

// TextToBlocks converts markdown-ish text into blocks: headings, bullet and
// numbered list items, and plain lines accumulated into paragraphs that stay
// under the block ceiling.
func TextToBlocks(text string) []Block {
	if text == "" {
		return nil
	}

	var blocks []Block
	var paragraph strings.Builder

	flush := func() {
		if paragraph.Len() > 0 {
			blocks = append(blocks, paragraphBlock(paragraph.String()))
			paragraph.Reset()
		}
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			flush()
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, "# "):
			flush()
			blocks = append(blocks, headingBlock(1, trimmed[2:]))
		case strings.HasPrefix(trimmed, "## "):
			flush()
			blocks = append(blocks, headingBlock(2, trimmed[3:]))
		case strings.HasPrefix(trimmed, "### "):
			flush()
			blocks = append(blocks, headingBlock(3, trimmed[4:]))
		case strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* "):
			flush()
			blocks = append(blocks, bulletBlock(trimmed[2:]))
		case numberedItemRe.MatchString(trimmed):
			flush()
			blocks = append(blocks, numberedBlock(numberedItemRe.ReplaceAllString(trimmed, "")))
		default:
			if paragraph.Len()+len(trimmed)+1 > paragraphAccumLimit {
				flush()
				paragraph.WriteString(trimmed)
			} else {
				if paragraph.Len() > 0 {
					paragraph.WriteByte(' ')
				}
				paragraph.WriteString(trimmed)
			}
		}
	}
	flush()

	return blocks
}

// SplitTextIntoChunks splits text into pieces no longer than maxLen,
// preferring paragraph, then sentence, then word boundaries. Separators stay
// attached to the preceding chunk so concatenating all chunks reproduces the
// source text exactly.
func SplitTextIntoChunks(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = MaxBlockTextLen
	}
	if len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	rest := text
	for len(rest) > maxLen {
		split := maxLen

		if idx := strings.LastIndex(rest[:maxLen], "\n\n"); idx > maxLen/2 {
			split = idx + 2
		} else if idx := lastSentenceEnd(rest[:maxLen]); idx > maxLen/2 {
			split = idx
		} else if idx := strings.LastIndexByte(rest[:maxLen], ' '); idx > maxLen/2 {
			split = idx + 1
		}

		chunks = append(chunks, rest[:split])
		rest = rest[split:]
	}
	if len(rest) > 0 {
		chunks = append(chunks, rest)
	}
	return chunks
}

// lastSentenceEnd returns the index just past the last ". ", "! " or "? "
// in s, or -1.
func lastSentenceEnd(s string) int {
	best := -1
	for _, sep := range []string{". ", "! ", "? "} {
		if idx := strings.LastIndex(s, sep); idx >= 0 && idx+2 > best {
			best = idx + 2
		}
	}
	return best
}
