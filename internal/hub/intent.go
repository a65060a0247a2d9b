package hub

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/store"
)

// Message types.
const (
	TypeState = "state"
	TypeError = "error"
)

// Intent types sent by views.
const (
	IntentAddText                        = "add_text"
	IntentRemoveText                     = "remove_text"
	IntentToggleText                     = "toggle_text"
	IntentToggleAll                      = "toggle_all"
	IntentSelectModelVariation           = "select_model_variation"
	IntentSelectTextClassificationMethod = "select_text_classification_method"
	IntentToggleShowAlarms               = "toggle_show_alarms"
	IntentToggleShowNotAlarms            = "toggle_show_not_alarms"
	IntentToggleWrongTopK                = "toggle_wrong_topk"
	IntentToggleSoftmax                  = "toggle_softmax"
	IntentToggleAllSimilarities          = "toggle_all_similarities"
	IntentSetSubtractionTexts            = "set_subtraction_texts"
	IntentPlayClip                       = "play_clip"
	IntentRefresh                        = "refresh"
)

// ErrUnknownIntent is returned for intents the hub does not understand.
var ErrUnknownIntent = errors.New("unknown intent")

// Message is the envelope of every websocket frame.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ErrorPayload is the payload of an error message.
type ErrorPayload struct {
	Message string `json:"message"`
	Intent  string `json:"intent,omitempty"`
}

type textPayload struct {
	Text           string `json:"text"`
	Classification bool   `json:"classification"`
}

type valuePayload struct {
	Value json.RawMessage `json:"value"`
}

type topKPayload struct {
	K int `json:"k"`
}

type clipPayload struct {
	Index string `json:"index"`
}

// decodeAction turns a state-changing intent into a store action.
// play_clip and refresh are effects, not actions, and are handled by the caller.
func decodeAction(msg Message) (store.Action, error) {
	switch msg.Type {
	case IntentAddText:
		var p textPayload
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		return store.AddText{Text: p.Text, Classification: p.Classification}, nil
	case IntentRemoveText:
		var p textPayload
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		return store.RemoveText{Text: p.Text}, nil
	case IntentToggleText:
		var p textPayload
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		return store.ToggleTextClassification{Text: p.Text}, nil
	case IntentToggleAll:
		var v bool
		if err := decodeValue(msg, &v); err != nil {
			return nil, err
		}
		return store.ToggleAllTo{Value: v}, nil
	case IntentSelectModelVariation:
		var v string
		if err := decodeValue(msg, &v); err != nil {
			return nil, err
		}
		return store.SelectModelVariation{Value: v}, nil
	case IntentSelectTextClassificationMethod:
		var v string
		if err := decodeValue(msg, &v); err != nil {
			return nil, err
		}
		return store.SelectTextClassificationMethod{Value: v}, nil
	case IntentSetSubtractionTexts:
		var v string
		if err := decodeValue(msg, &v); err != nil {
			return nil, err
		}
		return store.SetSubtractionTexts{Value: v}, nil
	case IntentToggleWrongTopK:
		var p topKPayload
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		return store.ToggleShowOnlyWrongTopK{K: p.K}, nil
	case IntentToggleShowAlarms:
		return store.ToggleShowAlarms{}, nil
	case IntentToggleShowNotAlarms:
		return store.ToggleShowNotAlarms{}, nil
	case IntentToggleSoftmax:
		return store.ToggleApplySoftmax{}, nil
	case IntentToggleAllSimilarities:
		return store.ToggleShowAllSimilarities{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownIntent, msg.Type)
}

func decode(msg Message, v any) error {
	if len(msg.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", msg.Type)
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("%s: decode payload: %w", msg.Type, err)
	}
	return nil
}

func decodeValue(msg Message, v any) error {
	var p valuePayload
	if err := decode(msg, &p); err != nil {
		return err
	}
	if len(p.Value) == 0 {
		return fmt.Errorf("%s: missing value", msg.Type)
	}
	if err := json.Unmarshal(p.Value, v); err != nil {
		return fmt.Errorf("%s: decode value: %w", msg.Type, err)
	}
	return nil
}
