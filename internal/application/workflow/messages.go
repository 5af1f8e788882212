package workflow

import (
	"fmt"
	"strings"

	"github.com/bestat/tatekae-seisan-bot/internal/application/service"
	"github.com/bestat/tatekae-seisan-bot/internal/domain/entity"
	domainwf "github.com/bestat/tatekae-seisan-bot/internal/domain/workflow"
)

// Messages are rendered as lark_md: [label](url) links and <at> mentions.

const (
	msgThreadAck          = "申請を受け付けました。領収書をこのスレッドに添付してください。"
	msgThreadLinkFallback = "こちら"
	msgApproved           = "承認されました。"
	msgRejected           = "却下されました。理由をスレッドに返信してください。"
	msgCompleted          = "精算処理が完了しました。"
	msgFailure            = "処理中にエラーが発生しました。時間をおいて再度お試しください。"
	msgValidationHeader   = "申請内容に誤りがあります。"
)

func mention(userID string) string {
	return fmt.Sprintf("<at id=%s></at>", userID)
}

func link(url, label string) string {
	if url == "" {
		return label
	}
	return fmt.Sprintf("[%s](%s)", label, url)
}

func sheetLink(rec *entity.RequestRecord) string {
	return link(rec.RowLink, "シート")
}

func requestMessage(rec *entity.RequestRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** 立替精算申請\n", rec.RequestID)
	fmt.Fprintf(&b, "• 申請者: %s (%s)\n", mention(rec.ApplicantID), rec.ApplicantName)
	fmt.Fprintf(&b, "• 経費内容: %s\n", rec.Title)
	fmt.Fprintf(&b, "• 金額: %s %s\n", service.FormatAmount(rec.Amount), rec.Currency)
	fmt.Fprintf(&b, "• 利用日: %s", rec.UsageDate)
	if rec.Remarks != "" {
		fmt.Fprintf(&b, "\n• 備考: %s", rec.Remarks)
	}
	return b.String()
}

func instructionsMessage(template, threadLink string) string {
	if threadLink == "" {
		threadLink = msgThreadLinkFallback
	}
	return strings.ReplaceAll(template, "{threadLink}", threadLink)
}

func submissionNotice(rec *entity.RequestRecord) string {
	return fmt.Sprintf("新しい立替精算申請: **%s** - %s が %s %s を申請しました。",
		rec.RequestID, mention(rec.ApplicantID), service.FormatAmount(rec.Amount), rec.Currency)
}

func receiptThreadMessage(rec *entity.RequestRecord, file *entity.ArchivedFile) string {
	fileLink := file.ViewLink
	if fileLink == "" {
		fileLink = file.DownloadLink
	}
	return fmt.Sprintf("領収書を保存しました。Drive: %s / シート: %s",
		link(fileLink, file.Name), link(rec.RowLink, "行リンク"))
}

func receiptNotice(rec *entity.RequestRecord) string {
	return fmt.Sprintf("領収書がアップロードされました: **%s** (%s)", rec.RequestID, sheetLink(rec))
}

func reactionThreadMessage(status domainwf.State, rec *entity.RequestRecord) string {
	text := msgRejected
	if status == domainwf.StateApproved {
		text = msgApproved
	}
	return fmt.Sprintf("%s (%s)", text, sheetLink(rec))
}

func reactionNotice(status domainwf.State, rec *entity.RequestRecord) string {
	label := "却下"
	if status == domainwf.StateApproved {
		label = "承認"
	}
	return fmt.Sprintf("%sリアクション: **%s** (%s)", label, rec.RequestID, sheetLink(rec))
}

func completionThreadMessage(rec *entity.RequestRecord) string {
	return fmt.Sprintf("%s (%s)", msgCompleted, sheetLink(rec))
}

func completionDirectMessage(rec *entity.RequestRecord) string {
	return fmt.Sprintf("あなたの立替精算 (%s) が完了しました。詳細: %s", rec.RequestID, sheetLink(rec))
}

func completionNotice(rec *entity.RequestRecord) string {
	return fmt.Sprintf("完了マーク: **%s** (%s)", rec.RequestID, sheetLink(rec))
}

func completionReply(requestID string) string {
	return fmt.Sprintf("受付番号 %s を完了に更新しました。", requestID)
}

func missingRequestIDReply(command string) string {
	return fmt.Sprintf("受付番号を指定してください (例: %s EXP-20250925-ABCD)", command)
}

func notFoundReply(requestID string) string {
	return fmt.Sprintf("指定した受付番号 %s の申請が見つかりませんでした。", requestID)
}

func alreadyCompletedReply(requestID string) string {
	return fmt.Sprintf("受付番号 %s は既に完了しています。", requestID)
}

func approvalRequiredReply(requestID string, status domainwf.State) string {
	return fmt.Sprintf("受付番号 %s は承認されていないため完了にできません (現在: %s)。", requestID, status)
}

func closedRequestMessage(rec *entity.RequestRecord) string {
	return fmt.Sprintf("**%s** は既に完了しているため、この操作は反映されませんでした。", rec.RequestID)
}

// validationMessage lists the field errors in form order
func validationMessage(verr *service.ValidationError) string {
	var b strings.Builder
	b.WriteString(msgValidationHeader)
	for _, block := range []string{service.BlockTitle, service.BlockAmount, service.BlockUsageDate} {
		if msg, ok := verr.Fields[block]; ok {
			fmt.Fprintf(&b, "\n• %s", msg)
		}
	}
	return b.String()
}
