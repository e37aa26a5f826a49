package agent

import (
	"fmt"
	"strings"

	"github.com/cordialrun/agentrt/pkg/models"
)

// normalizeInput converts user text plus raw attachments into an ordered
// list of content blocks. Attachment media types are
// sniffed to decide the block shape: image/* becomes an image block,
// application/pdf a document block, and anything text-like is appended to
// the prose text block rather than carried as a separate attachment. Block
// order follows attachment order, with the leading text block (if any)
// always first.
func normalizeInput(text string, attachments []models.Attachment) ([]models.ContentBlock, error) {
	var prose strings.Builder
	prose.WriteString(text)

	var blocks []models.ContentBlock
	for _, att := range attachments {
		switch {
		case strings.HasPrefix(att.MimeType, "image/"):
			blocks = append(blocks, models.Image(att.MimeType, att.Data))
		case att.MimeType == "application/pdf":
			blocks = append(blocks, models.Document(att.MimeType, att.Data, att.Filename))
		case isTextLike(att.MimeType):
			if prose.Len() > 0 {
				prose.WriteString("\n\n")
			}
			prose.WriteString(fmt.Sprintf("--- %s ---\n%s", attachmentLabel(att), string(att.Data)))
		default:
			return nil, &InputError{Message: fmt.Sprintf("unsupported attachment type %q", att.MimeType)}
		}
	}

	var out []models.ContentBlock
	if prose.Len() > 0 {
		out = append(out, models.Text(prose.String()))
	}
	out = append(out, blocks...)

	if len(out) == 0 {
		return nil, &InputError{Message: "empty user content"}
	}
	return out, nil
}

func isTextLike(mimeType string) bool {
	if strings.HasPrefix(mimeType, "text/") {
		return true
	}
	switch mimeType {
	case "application/json", "application/xml", "application/x-yaml", "":
		return true
	default:
		return false
	}
}

func attachmentLabel(att models.Attachment) string {
	if att.Filename != "" {
		return att.Filename
	}
	return att.MimeType
}
