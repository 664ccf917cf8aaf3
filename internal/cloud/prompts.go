// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cloud

// PromptData is the value every prompt template is executed against.
type PromptData struct {
	SceneNumber    int
	TotalScenes    int
	ImageContext   string
	TargetLanguage string
	Text           string
	Example        string // JSON sample of the expected answer, if any
}

// DefaultPromptTemplates returns the built-in prompts. Any of them can be
// overridden in the [prompt_templates] section of the configuration.
func DefaultPromptTemplates() PromptTemplates {
	return PromptTemplates{
		AnalyzeImage: `Analyze this image and tell me ONLY two things: 1) the gender (respond with exactly 'male' or 'female'), and 2) the approximate age category (respond with exactly 'young', 'middle', or 'old'). Format your response as a valid JSON object with exactly these two fields: {"gender": "male|female", "age": "young|middle|old"}{{if .Example}} For example: {{.Example}}{{end}}`,

		DescribeImage: `Analyze this image and describe what you see in detail, including: the person's appearance, clothing, setting, and any notable objects or actions. Format as a brief paragraph.`,

		FirstDescription: `Based on this image: {{.ImageContext}}

Generate a compelling opening scene description for a 5-second video clip. Focus on establishing the setting, movement, emotion, and visual interest.`,

		NextDescription: `Based on this image: {{.ImageContext}}

Generate a compelling scene description that continues naturally from the previous scene (scene {{.SceneNumber}} of {{.TotalScenes}}). The camera should start from where the last scene ended, ensuring a smooth 5-second transition. Focus on continuing the story flow while maintaining visual interest.`,

		FirstSubtitles: `Based on this image: {{.ImageContext}}

Generate natural, engaging opening dialogue or narration for a 5-second video clip. The dialogue should establish the scene's context and feel authentic.`,

		NextSubtitles: `Based on this image: {{.ImageContext}}

Generate natural dialogue or narration that continues directly from the previous scene (scene {{.SceneNumber}} of {{.TotalScenes}}). This 5-second clip should flow seamlessly from the previous conversation or narration, maintaining context and character voices.`,

		FirstBoth: `Based on this image: {{.ImageContext}}

Generate both:
1. A compelling 5-second opening scene description that establishes the setting and visual interest
2. Opening dialogue or narration that sets up the scene naturally

Format your response as a JSON object with 'sceneDescription' and 'subtitles' fields.{{if .Example}} For example:
{{.Example}}{{end}}`,

		NextBoth: `Based on this image: {{.ImageContext}}

For scene {{.SceneNumber}} of {{.TotalScenes}}, generate both:
1. A compelling 5-second scene description that continues naturally from the previous scene, ensuring smooth camera transitions
2. Dialogue or narration that continues directly from the previous scene's conversation

Ensure both the visuals and dialogue flow seamlessly from the previous scene.

Format your response as a JSON object with 'sceneDescription' and 'subtitles' fields.{{if .Example}} For example:
{{.Example}}{{end}}`,

		DescriptionSystem: `You are a creative video scene planner. For scene {{.SceneNumber}} of {{.TotalScenes}}, ensure your scene description continues naturally from the previous scene, with smooth camera transitions. Respond with a scene description as plain text.`,

		SubtitlesSystem: `You are a creative video scene planner. For scene {{.SceneNumber}} of {{.TotalScenes}}, ensure your dialogue continues naturally from the previous scene's conversation. The dialogue MUST be very concise and take exactly 5 seconds to speak at a natural pace (about 10-15 words maximum). Respond with dialogue or narration as plain text.`,

		BothSystem: `You are a creative video scene planner for a continuous story. For scene {{.SceneNumber}} of {{.TotalScenes}}, ensure your scene descriptions and dialogue flow naturally from the previous scenes. The dialogue MUST be very concise and take exactly 5 seconds to speak at a natural pace (about 10-15 words maximum). Format your response as a JSON object with 'sceneDescription' and 'subtitles' fields.`,

		ConversationSystem: `Extract only the conversation/dialogue from the given text. Return only the conversation, without any narration or description.`,

		TranslationSystem: `You are a translation assistant. Translate the given text to {{.TargetLanguage}}. Return the result in JSON format with a 'translated_text' field.`,

		TranslationUser: `Translate this text to {{.TargetLanguage}} and return as JSON: "{{.Text}}"`,
	}
}
