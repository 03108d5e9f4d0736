package meal

import (
	"encoding/json"
	"fmt"

	"mealchat-server-go/src/core/types"
)

// Mode 请求模式
type Mode string

const (
	ModeExtraction Mode = "extract"
	ModeQuestion   Mode = "ask"
)

const extractionSystemPrompt = `You are an AI assistant whose job is to inspect an image and provide the desired information from the image. If the desired field is not clear or not well detected, return None for this field. Do not try to guess.`

const extractionUserPrompt = `Examine the name of the food, the origin, places or restaurants we can find this food, and a short further information of this food.`

const questionSystemPrompt = `Answer the question related to the image provided. Answer concisely in less than 50 words.`

// ImageRef 请求中引用的图片
type ImageRef struct {
	DataURI string
	Detail  string // low, high, auto
}

func (i ImageRef) part() types.ContentPart {
	return types.ContentPart{
		Type:     types.PartTypeImageURL,
		ImageURL: i.DataURI,
		Detail:   i.Detail,
	}
}

// Request 一次模型请求，只能是 ExtractionRequest 或 QuestionRequest
type Request interface {
	Mode() Mode
	Messages() []types.Message
	sealed()
}

// ExtractionRequest 提取餐食结构化信息
type ExtractionRequest struct {
	Image ImageRef
}

// QuestionRequest 针对图片回答用户问题
type QuestionRequest struct {
	Image    ImageRef
	Question string
}

func (ExtractionRequest) sealed() {}
func (QuestionRequest) sealed()   {}

// Mode 实现 Request
func (ExtractionRequest) Mode() Mode { return ModeExtraction }

// Mode 实现 Request
func (QuestionRequest) Mode() Mode { return ModeQuestion }

// Messages 系统指令 + 用户消息（说明、输出格式、图片）
func (r ExtractionRequest) Messages() []types.Message {
	return []types.Message{
		types.TextMessage(types.RoleSystem, extractionSystemPrompt),
		{
			Role: types.RoleUser,
			Parts: []types.ContentPart{
				{Type: types.PartTypeText, Text: extractionUserPrompt},
				{Type: types.PartTypeText, Text: FormatInstructions()},
				r.Image.part(),
			},
		},
	}
}

// Messages 系统指令 + 用户消息（图片、问题原文）
func (r QuestionRequest) Messages() []types.Message {
	return []types.Message{
		types.TextMessage(types.RoleSystem, questionSystemPrompt),
		{
			Role: types.RoleUser,
			Parts: []types.ContentPart{
				r.Image.part(),
				{Type: types.PartTypeText, Text: "Question: " + r.Question},
			},
		},
	}
}

// BuildMessages 根据请求类型构建发送给模型的两条消息
func BuildMessages(req Request) []types.Message {
	return req.Messages()
}

type schemaProperty struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	Examples    []string `json:"examples,omitempty"`
}

type outputSchema struct {
	Title      string                    `json:"title"`
	Type       string                    `json:"type"`
	Properties map[string]schemaProperty `json:"properties"`
	Required   []string                  `json:"required"`
}

// FieldNames MealRecord 的字段名，顺序与输出格式一致
var FieldNames = []string{"Name", "Origin", "Where", "Information"}

var mealSchema = outputSchema{
	Title: "Meal",
	Type:  "object",
	Properties: map[string]schemaProperty{
		"Name": {
			Title:       "Name",
			Description: "The name of the food.",
			Type:        "string",
			Examples:    []string{"Noodle", "Bread", "Steak"},
		},
		"Origin": {
			Title:       "Origin",
			Description: "The origin of the food.",
			Type:        "string",
			Examples:    []string{"German", "Austrian", "Asian", "Italian"},
		},
		"Where": {
			Title:       "Where",
			Description: "The restaurants or places we can find this food, provide up to 5 places.",
			Type:        "string",
		},
		"Information": {
			Title:       "Information",
			Description: "Further information about this food within 20 words.",
			Type:        "string",
		},
	},
	Required: FieldNames,
}

var formatInstructions = buildFormatInstructions()

func buildFormatInstructions() string {
	schema, err := json.Marshal(mealSchema)
	if err != nil {
		panic(fmt.Sprintf("meal schema: %v", err))
	}
	return "The output should be formatted as a JSON instance that conforms to the JSON schema below.\n\n" +
		`As an example, for the schema {"properties": {"foo": {"title": "Foo", "description": "a list of strings", "type": "array", "items": {"type": "string"}}}, "required": ["foo"]}` + "\n" +
		`the object {"foo": ["bar", "baz"]} is a well-formatted instance of the schema. The object {"properties": {"foo": ["bar", "baz"]}} is not well-formatted.` + "\n\n" +
		"Here is the output schema:\n```\n" + string(schema) + "\n```"
}

// FormatInstructions 返回描述 MealRecord 输出格式的说明文本
func FormatInstructions() string {
	return formatInstructions
}
