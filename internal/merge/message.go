package merge

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// Gmail rejects messages above 25MB; attachments beyond that are skipped.
const maxAttachmentSize = 25 << 20

// Build assembles a transport-ready RFC 2822 message. With no
// attachments the result is a single text/plain body; otherwise a
// multipart/mixed message with one base64 part per readable attachment.
// Attachments that cannot be read (or are empty or oversized) are
// skipped with a warning so one bad file never blocks a send.
func Build(log *slog.Logger, from, to, subject, body string, attachments []string) string {
	var msg strings.Builder
	if from != "" {
		fmt.Fprintf(&msg, "From: %s\r\n", from)
	}
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")

	if len(attachments) == 0 {
		msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
		msg.WriteString("\r\n")
		msg.WriteString(body)
		return msg.String()
	}

	boundary := randomBoundary()
	fmt.Fprintf(&msg, "Content-Type: multipart/mixed; boundary=%q\r\n", boundary)
	msg.WriteString("\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("Content-Transfer-Encoding: 7bit\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)
	msg.WriteString("\r\n")

	for _, path := range attachments {
		writeAttachmentPart(&msg, log, path, boundary)
	}
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)
	return msg.String()
}

func writeAttachmentPart(msg *strings.Builder, log *slog.Logger, path, boundary string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn("skipping unreadable attachment", "path", path, "error", err)
		return
	}
	if len(data) == 0 {
		log.Warn("skipping empty attachment", "path", path)
		return
	}
	if len(data) > maxAttachmentSize {
		log.Warn("skipping oversized attachment", "path", path, "bytes", len(data))
		return
	}
	filename := filepath.Base(path)
	mimeType := mime.TypeByExtension(filepath.Ext(filename))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	fmt.Fprintf(msg, "--%s\r\n", boundary)
	fmt.Fprintf(msg, "Content-Type: %s\r\n", mimeType)
	fmt.Fprintf(msg, "Content-Disposition: attachment; filename=%q\r\n", filename)
	msg.WriteString("Content-Transfer-Encoding: base64\r\n")
	msg.WriteString("\r\n")
	encoded := base64.StdEncoding.EncodeToString(data)
	for i := 0; i < len(encoded); i += 76 {
		end := i + 76
		if end > len(encoded) {
			end = len(encoded)
		}
		msg.WriteString(encoded[i:end])
		msg.WriteString("\r\n")
	}
}

// EncodeRaw converts an assembled message to the provider's raw wire
// form: base64url without padding.
func EncodeRaw(msg string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(msg))
}

func randomBoundary() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(err)
	}
	return "part-" + hex.EncodeToString(buf[:])
}
