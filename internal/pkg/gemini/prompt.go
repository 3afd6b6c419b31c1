package gemini

import (
	"fmt"

	"github.com/AhmedAbubaker98/GitInsight/internal/model"
)

var lengthGuidance = map[string]string{
	"small":  "concise (around 2-3 paragraphs)",
	"medium": "detailed (several paragraphs, covering key aspects)",
	"large":  "very detailed and comprehensive (multiple sections, extensive coverage)",
}

var technicalGuidance = map[string]string{
	"non-technical": "for a non-technical team member or client (simple language, focus on purpose and value).",
	"technical":     "for a software developer (mention key technologies, structure, and how to get started).",
	"expert":        "for an expert in the domain (deep dive into architecture, advanced concepts, and potential challenges).",
}

// BuildPrompt 按参数拼出摘要提示词
func BuildPrompt(text string, params model.AnalysisParams) string {
	lang := params.Language
	if lang == "" {
		lang = "en"
	}

	length, ok := lengthGuidance[params.Length]
	if !ok {
		length = lengthGuidance["medium"]
	}

	technicality, ok := technicalGuidance[params.Technicality]
	if !ok {
		technicality = technicalGuidance["technical"]
	}

	return fmt.Sprintf(`Analyze the following GitHub repository content and generate a structured HTML summary.
The repository content is provided as a series of file excerpts.
Your summary should be in %s.
The desired length of the summary is: %s.
The target audience is: %s

The HTML output should be well-formed and include these sections if applicable, adapting to the content:
- **Overview:** A brief introduction to the project's purpose.
- **Key Features/Functionality:** Main capabilities.
- **Tech Stack/Architecture:** Core technologies and structure.
- **Setup & Usage:** How to get it running and use it.
- **File Structure Highlights:** Notable files or directories.
- **Potential Next Steps/Improvements:** (Optional, if evident)

Do NOT include markdown code fences around your HTML output.
Provide only the HTML content for the summary itself.

Repository Content:
---
%s
---
End of Repository Content. Generate the HTML summary now.
`, lang, length, technicality, text)
}
