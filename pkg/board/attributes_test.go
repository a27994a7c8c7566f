package board

import (
	"errors"
	"testing"

	"github.com/astromechza/collab-canvas/pkg/shape"
)

func TestCaptureAttributes(t *testing.T) {
	r := shape.NewRect(shape.Point{})
	r.Width, r.Height = 40.4, 10
	r.Paint.ScaleY = 3
	got := captureAttributes(r)
	want := Attributes{Width: "40", Height: "30", Fill: shape.DefaultFill, Stroke: shape.DefaultStroke}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	txt := shape.NewText(shape.Point{})
	got = captureAttributes(txt)
	if got.FontSize != "36" || got.FontFamily != shape.DefaultFontFamily || got.FontWeight != "400" {
		t.Errorf("text attributes = %+v", got)
	}
}

func TestApplyAttribute(t *testing.T) {
	tests := []struct {
		name    string
		shape   func() shape.Shape
		attr    Attr
		value   string
		wantErr bool
		check   func(s shape.Shape) bool
	}{
		{
			name:  "fill",
			shape: func() shape.Shape { return shape.NewRect(shape.Point{}) },
			attr:  AttrFill, value: "#ff0000",
			check: func(s shape.Shape) bool { return s.Style().Fill == "#ff0000" },
		},
		{
			name: "width via scale",
			shape: func() shape.Shape {
				e := shape.NewEllipse(shape.Point{})
				e.RX, e.RY = 10, 10
				return e
			},
			attr: AttrWidth, value: "40",
			check: func(s shape.Shape) bool { return s.Style().ScaleX == 2 },
		},
		{
			name:  "width of empty shape",
			shape: func() shape.Shape { return shape.NewRect(shape.Point{}) },
			attr:  AttrWidth, value: "40", wantErr: true,
		},
		{
			name: "negative height",
			shape: func() shape.Shape {
				r := shape.NewRect(shape.Point{})
				r.Height = 5
				return r
			},
			attr: AttrHeight, value: "-1", wantErr: true,
		},
		{
			name:  "font on rect",
			shape: func() shape.Shape { return shape.NewRect(shape.Point{}) },
			attr:  AttrFontFamily, value: "Times", wantErr: true,
		},
		{
			name:  "font family",
			shape: func() shape.Shape { return shape.NewText(shape.Point{}) },
			attr:  AttrFontFamily, value: "Times",
			check: func(s shape.Shape) bool { return s.(*shape.Text).FontFamily == "Times" },
		},
		{
			name:  "unknown",
			shape: func() shape.Shape { return shape.NewText(shape.Point{}) },
			attr:  Attr("opacity"), value: "1", wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.shape()
			err := applyAttribute(s, tt.attr, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(s) {
				t.Errorf("attribute not applied")
			}
		})
	}
}

func TestUnsupportedAttrSentinel(t *testing.T) {
	err := applyAttribute(shape.NewLine(shape.Point{}), AttrFontSize, "12")
	if !errors.Is(err, ErrUnsupportedAttr) {
		t.Errorf("err = %v, want ErrUnsupportedAttr", err)
	}
}

func TestKeyIntent(t *testing.T) {
	tests := []struct {
		key  KeyEvent
		want intent
	}{
		{KeyEvent{Key: "z", Ctrl: true}, intentUndo},
		{KeyEvent{Key: "Z", Meta: true, Shift: true}, intentRedo},
		{KeyEvent{Key: "y", Ctrl: true}, intentRedo},
		{KeyEvent{Key: "c", Meta: true}, intentCopy},
		{KeyEvent{Key: "x", Ctrl: true}, intentCut},
		{KeyEvent{Key: "v", Ctrl: true}, intentPaste},
		{KeyEvent{Key: "Delete"}, intentDelete},
		{KeyEvent{Key: "Backspace"}, intentDelete},
		{KeyEvent{Key: "z"}, intentNone},
		{KeyEvent{Key: "q", Ctrl: true}, intentNone},
	}
	for _, tt := range tests {
		if got := tt.key.intent(); got != tt.want {
			t.Errorf("%+v intent = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestTools(t *testing.T) {
	for _, tool := range []Tool{ToolRectangle, ToolTriangle, ToolEllipse, ToolLine, ToolFreeform, ToolText} {
		if !tool.Drawable() || newShape(tool, shape.Point{}) == nil {
			t.Errorf("%s should be drawable", tool)
		}
	}
	for _, tool := range []Tool{ToolSelect, ToolImage, ToolDelete, ToolReset, ToolComments} {
		if tool.Drawable() {
			t.Errorf("%s should not be drawable", tool)
		}
	}
	if !ToolFreeform.Sticky() || ToolRectangle.Sticky() {
		t.Errorf("only freeform is sticky")
	}
}
