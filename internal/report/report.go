// Package report renders operator results and errors for people, in English
// or Japanese.
package report

import (
	"errors"
	"strings"

	"github.com/Faultbox/posetorest/internal/bake"
	"github.com/Faultbox/posetorest/internal/operator"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys. English output uses the key itself as the format.
const (
	msgTitle            = "Apply Current Pose as Rest"
	msgDescription      = "Apply current pose as rest pose while preserving shape keys and drivers"
	msgApplied          = "Applied pose as rest for %s and processed %d meshes"
	msgWarning          = "Warning: %s"
	msgNoArmature       = "No armature selected"
	msgInvalidArmature  = "Invalid armature object"
	msgPoseFailed       = "Failed to apply pose to armature: %v"
	msgMeshFailed       = "Failed to process shape keys for %s"
	msgError            = "Error occurred: %v"
	msgNoMeshes         = "No meshes found with armature modifier"
	msgMultiple         = "Object '%s' has multiple Armature modifiers"
	msgVertexMismatch   = "Cannot transfer shape key '%s': vertex count mismatch (%d vs %d). Check for modifiers that change vertex count (Decimate, Weld, etc.)."
	msgTransferFailed   = "Shape key transfer failed for '%s': expected %d keys, got %d"
	msgDeformerOrder    = "Deformation modifiers before Armature modifier detected: %s"
	msgArmatureProperty = "Target Armature"
)

var japanese = map[string]string{
	msgTitle:            "現在のポーズをレストポーズとして適用",
	msgDescription:      "シェイプキーとドライバーを保持しながら現在のポーズをレストポーズとして適用",
	msgApplied:          "%sにポーズを適用し、%d個のメッシュを処理しました",
	msgWarning:          "警告: %s",
	msgNoArmature:       "アーマチュアが選択されていません",
	msgInvalidArmature:  "無効なアーマチュアオブジェクト",
	msgPoseFailed:       "アーマチュアへのポーズ適用に失敗しました: %v",
	msgMeshFailed:       "%sのシェイプキー処理に失敗しました",
	msgError:            "エラーが発生しました: %v",
	msgNoMeshes:         "アーマチュアモディファイアを持つメッシュが見つかりません",
	msgMultiple:         "オブジェクト'%s'に複数のアーマチュアモディファイアがあります",
	msgVertexMismatch:   "シェイプキー'%s'を転送できません: 頂点数が一致しません（%d vs %d）。頂点数を変更するモディファイア（Decimate、Weldなど）を確認してください。",
	msgTransferFailed:   "'%s'のシェイプキー転送に失敗しました: %d個のキーを期待しましたが、%d個でした",
	msgDeformerOrder:    "アーマチュアモディファイアより前にデフォームモディファイアが検出されました: %s",
	msgArmatureProperty: "対象アーマチュア",
}

var (
	supported = []language.Tag{language.English, language.Japanese}
	matcher   = language.NewMatcher(supported)
	messages  = newCatalog()
)

func newCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, msg := range japanese {
		if err := b.SetString(language.Japanese, key, msg); err != nil {
			panic(err)
		}
	}
	return b
}

// Printer formats messages in one language.
type Printer struct {
	tag language.Tag
	p   *message.Printer
}

// New returns a printer for the closest supported match of lang, such as
// "en", "ja" or "ja_JP". Unknown or empty languages fall back to English.
func New(lang string) *Printer {
	_, i, _ := matcher.Match(language.Make(lang))
	tag := supported[i]
	return &Printer{tag: tag, p: message.NewPrinter(tag, message.Catalog(messages))}
}

// Language returns the language the printer writes.
func (p *Printer) Language() language.Tag { return p.tag }

// Title returns the operation's display name.
func (p *Printer) Title() string { return p.p.Sprintf(msgTitle) }

// Description returns the operation's one-line description.
func (p *Printer) Description() string { return p.p.Sprintf(msgDescription) }

// ArmatureLabel returns the label of the target armature setting.
func (p *Printer) ArmatureLabel() string { return p.p.Sprintf(msgArmatureProperty) }

// Result renders a successful run: a summary line then one line per warning.
func (p *Printer) Result(res *operator.Result) string {
	var sb strings.Builder
	sb.WriteString(p.p.Sprintf(msgApplied, res.Armature, len(res.Processed)))
	for _, w := range res.Warnings {
		sb.WriteByte('\n')
		sb.WriteString(p.p.Sprintf(msgWarning, w))
	}
	return sb.String()
}

// Error renders a failed run.
func (p *Printer) Error(err error) string {
	var me *operator.MeshError
	if errors.As(err, &me) {
		return p.p.Sprintf(msgMeshFailed, me.Object) + ": " + p.describe(me.Err)
	}
	return p.describe(err)
}

func (p *Printer) describe(err error) string {
	var (
		multi    *bake.MultipleDeformersError
		order    *bake.DeformerOrderError
		mismatch *bake.VertexCountMismatchError
		verify   *bake.TransferVerificationError
		pose     *bake.PoseCommitError
		apply    *bake.DeformerApplyError
	)
	switch {
	case errors.Is(err, operator.ErrNoArmature):
		return p.p.Sprintf(msgNoArmature)
	case errors.Is(err, operator.ErrInvalidArmature):
		return p.p.Sprintf(msgInvalidArmature)
	case errors.Is(err, bake.ErrNoAffectedMeshes):
		return p.p.Sprintf(msgNoMeshes)
	case errors.As(err, &multi):
		return p.p.Sprintf(msgMultiple, multi.Mesh)
	case errors.As(err, &order):
		return p.p.Sprintf(msgDeformerOrder, strings.Join(order.Meshes, ", "))
	case errors.As(err, &mismatch):
		return p.p.Sprintf(msgVertexMismatch, mismatch.Key, mismatch.Receiver, mismatch.Donor)
	case errors.As(err, &verify):
		return p.p.Sprintf(msgTransferFailed, verify.Key, verify.Expected, verify.Actual)
	case errors.As(err, &pose):
		return p.p.Sprintf(msgPoseFailed, pose.Err)
	case errors.As(err, &apply):
		return p.p.Sprintf(msgError, apply.Err)
	default:
		return p.p.Sprintf(msgError, err)
	}
}
