package stages

import (
	"fmt"

	"subflow/internal/language"
)

func translationPrompt(target language.Target) string {
	return fmt.Sprintf(`You are a professional subtitle translator. Translate the subtitle file below into %s.

Rules:
- Preserve the SRT structure exactly: cue numbers, timestamps, and blank lines stay as they are.
- Translate only the text lines.
- Keep line lengths readable for on-screen display.
- Output the complete translated SRT file and nothing else.`, target.DisplayName())
}

const summaryPrompt = `You are a concise technical writer. Summarize the subtitle transcript below as Markdown.

Rules:
- Start with a single-sentence synopsis.
- Follow with three to eight bullet points covering the main points in order.
- Do not invent details that are not in the transcript.
- Output only the Markdown summary.`
