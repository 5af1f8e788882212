package lark

import (
	"encoding/json"
	"fmt"
)

// Message types
const (
	MsgTypeText        = "text"
	MsgTypeInteractive = "interactive"
)

// Form component names. Submissions come back keyed by these names.
const (
	FieldTitle     = "expense_title_block"
	FieldAmount    = "amount_block"
	FieldUsageDate = "usage_date_block"
	FieldRemarks   = "remarks_block"

	FormName         = "expense_form"
	SubmitButtonName = "expense_submit"
)

// markdownCard wraps lark_md text in a minimal interactive card. Plain text
// messages do not render links or mentions written in lark_md.
func markdownCard(text string) (string, error) {
	card := map[string]interface{}{
		"config": map[string]interface{}{"wide_screen_mode": true},
		"elements": []interface{}{
			map[string]interface{}{
				"tag": "div",
				"text": map[string]interface{}{
					"tag":     "lark_md",
					"content": text,
				},
			},
		},
	}
	return marshalCard(card)
}

// submissionFormCard is the expense submission form. The title and amount
// inputs are required on the client side as well.
func submissionFormCard() (string, error) {
	card := map[string]interface{}{
		"schema": "2.0",
		"config": map[string]interface{}{"wide_screen_mode": true},
		"header": map[string]interface{}{
			"title":    plainText("立替精算申請"),
			"template": "blue",
		},
		"body": map[string]interface{}{
			"elements": []interface{}{
				map[string]interface{}{
					"tag":  "form",
					"name": FormName,
					"elements": []interface{}{
						input(FieldTitle, "件名", "例: 取引先との会食", true),
						input(FieldAmount, "金額（円）", "例: 3500", true),
						map[string]interface{}{
							"tag":         "date_picker",
							"name":        FieldUsageDate,
							"required":    true,
							"placeholder": plainText("利用日"),
						},
						input(FieldRemarks, "備考", "任意", false),
						map[string]interface{}{
							"tag":         "button",
							"name":        SubmitButtonName,
							"type":        "primary",
							"action_type": "form_submit",
							"text":        plainText("申請する"),
						},
					},
				},
			},
		},
	}
	return marshalCard(card)
}

func input(name, label, placeholder string, required bool) map[string]interface{} {
	return map[string]interface{}{
		"tag":         "input",
		"name":        name,
		"required":    required,
		"label":       plainText(label),
		"placeholder": plainText(placeholder),
	}
}

func plainText(s string) map[string]interface{} {
	return map[string]interface{}{"tag": "plain_text", "content": s}
}

func marshalCard(card map[string]interface{}) (string, error) {
	b, err := json.Marshal(card)
	if err != nil {
		return "", fmt.Errorf("failed to marshal card: %w", err)
	}
	return string(b), nil
}
