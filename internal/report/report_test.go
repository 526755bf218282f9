package report

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Faultbox/posetorest/internal/bake"
	"github.com/Faultbox/posetorest/internal/operator"
	"golang.org/x/text/language"
)

func TestNew_Language(t *testing.T) {
	tests := []struct {
		in   string
		want language.Tag
	}{
		{"", language.English},
		{"en", language.English},
		{"en-GB", language.English},
		{"ja", language.Japanese},
		{"ja_JP", language.Japanese},
		{"klingon", language.English},
	}
	for _, tt := range tests {
		if got := New(tt.in).Language(); got != tt.want {
			t.Errorf("New(%q): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}

func TestPrinter_Result(t *testing.T) {
	res := &operator.Result{
		Armature:  "Rig",
		Processed: []string{"Body", "Leg"},
		Warnings:  []string{`Body: restore drivers on "Body": boom`},
	}

	en := New("en").Result(res)
	want := "Applied pose as rest for Rig and processed 2 meshes\nWarning: Body: restore drivers on \"Body\": boom"
	if en != want {
		t.Errorf("expected %q, got %q", want, en)
	}

	ja := New("ja").Result(&operator.Result{Armature: "Rig", Processed: []string{"Body"}})
	if want := "Rigにポーズを適用し、1個のメッシュを処理しました"; ja != want {
		t.Errorf("expected %q, got %q", want, ja)
	}
}

func TestPrinter_Error(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name string
		err  error
		en   string
		ja   string
	}{
		{
			name: "no armature",
			err:  operator.ErrNoArmature,
			en:   "No armature selected",
			ja:   "アーマチュアが選択されていません",
		},
		{
			name: "invalid armature",
			err:  fmt.Errorf("%q: %w", "Body", operator.ErrInvalidArmature),
			en:   "Invalid armature object",
			ja:   "無効なアーマチュアオブジェクト",
		},
		{
			name: "no meshes",
			err:  bake.ErrNoAffectedMeshes,
			en:   "No meshes found with armature modifier",
			ja:   "アーマチュアモディファイアを持つメッシュが見つかりません",
		},
		{
			name: "multiple deformers",
			err:  &bake.MultipleDeformersError{Mesh: "Body", Count: 2},
			en:   "Object 'Body' has multiple Armature modifiers",
			ja:   "オブジェクト'Body'に複数のアーマチュアモディファイアがあります",
		},
		{
			name: "deformer order",
			err:  &bake.DeformerOrderError{Meshes: []string{"Body", "Leg"}},
			en:   "Deformation modifiers before Armature modifier detected: Body, Leg",
			ja:   "アーマチュアモディファイアより前にデフォームモディファイアが検出されました: Body, Leg",
		},
		{
			name: "vertex mismatch inside mesh failure",
			err: &operator.MeshError{Object: "Body", Err: &bake.VertexCountMismatchError{
				Mesh: "Body", Key: "Smile", Index: 1, Receiver: 3, Donor: 2,
			}},
			en: "Failed to process shape keys for Body: Cannot transfer shape key 'Smile': vertex count mismatch (3 vs 2). Check for modifiers that change vertex count (Decimate, Weld, etc.).",
			ja: "Bodyのシェイプキー処理に失敗しました: シェイプキー'Smile'を転送できません: 頂点数が一致しません（3 vs 2）。頂点数を変更するモディファイア（Decimate、Weldなど）を確認してください。",
		},
		{
			name: "transfer verification",
			err:  &bake.TransferVerificationError{Mesh: "Body", Key: "Frown", Expected: 2, Actual: 1},
			en:   "Shape key transfer failed for 'Frown': expected 2 keys, got 1",
			ja:   "'Frown'のシェイプキー転送に失敗しました: 2個のキーを期待しましたが、1個でした",
		},
		{
			name: "pose commit",
			err:  &bake.PoseCommitError{Armature: "Rig", Err: boom},
			en:   "Failed to apply pose to armature: boom",
			ja:   "アーマチュアへのポーズ適用に失敗しました: boom",
		},
		{
			name: "anything else",
			err:  boom,
			en:   "Error occurred: boom",
			ja:   "エラーが発生しました: boom",
		},
	}

	en, ja := New("en"), New("ja")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := en.Error(tt.err); got != tt.en {
				t.Errorf("en: expected %q, got %q", tt.en, got)
			}
			if got := ja.Error(tt.err); got != tt.ja {
				t.Errorf("ja: expected %q, got %q", tt.ja, got)
			}
		})
	}
}

func TestPrinter_Labels(t *testing.T) {
	ja := New("ja")
	if ja.Title() != "現在のポーズをレストポーズとして適用" {
		t.Errorf("unexpected title %q", ja.Title())
	}
	if ja.ArmatureLabel() != "対象アーマチュア" {
		t.Errorf("unexpected label %q", ja.ArmatureLabel())
	}
	if New("en").Description() != "Apply current pose as rest pose while preserving shape keys and drivers" {
		t.Errorf("unexpected description %q", New("en").Description())
	}
}
