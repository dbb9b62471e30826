package protocol

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ufdr-insight-api/internal/domain/evidence"
)

func TestDecodeInfersChatWithoutHeader(t *testing.T) {
	doc := Decode("1. App: WhatsApp | From: +111 | Message: Hello")

	require.Len(t, doc.Records, 1)
	rec := doc.Records[0]
	assert.Equal(t, evidence.KindChat, rec.Kind)
	require.NotNil(t, rec.Chat)
	assert.Equal(t, "WhatsApp", rec.Chat.App)
	assert.Equal(t, "+111", rec.Chat.From)
	assert.Equal(t, "Hello", rec.Chat.Message)
}

func TestDecodeCallSectionWithHyphenMarker(t *testing.T) {
	text := "CALL RECORDS\n1 - Duration: 00:05:12 | Type: outgoing"
	doc := Decode(text)

	require.Len(t, doc.Records, 1)
	rec := doc.Records[0]
	assert.Equal(t, evidence.KindCall, rec.Kind)
	require.NotNil(t, rec.Call)
	assert.Equal(t, "00:05:12", rec.Call.Duration)
	assert.Equal(t, "outgoing", rec.Call.CallType)
}

func TestDecodeProseReturnsNarrationOnly(t *testing.T) {
	text := "No structured evidence was found for this question.\nThe case contains 3 devices in total."
	doc := Decode(text)

	assert.Empty(t, doc.Records)
	assert.Equal(t, text, doc.Narration)
}

func TestDecodeHeaderVariants(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   evidence.Kind
	}{
		{"plain", "CHAT RECORDS", evidence.KindChat},
		{"lowercase", "chat records", evidence.KindChat},
		{"underscored", "CHAT_RECORDS", evidence.KindChat},
		{"decorated", "**MEDIA FILES:**", evidence.KindMedia},
		{"device short form", "Device Info", evidence.KindDevice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := headerKind(tt.header)
			require.True(t, ok)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestDecodeLabelSynonyms(t *testing.T) {
	text := "CHAT RECORDS\n1. Platform: Telegram | Sender: +222 | Recipient: +333 | Timestamp: 2024-01-15 10:30 | Content: see you at 8"
	doc := Decode(text)

	require.Len(t, doc.Records, 1)
	rec := doc.Records[0]
	require.NotNil(t, rec.Chat)
	assert.Equal(t, "Telegram", rec.Chat.App)
	assert.Equal(t, "+222", rec.Chat.From)
	assert.Equal(t, "+333", rec.Chat.To)
	assert.Equal(t, "2024-01-15 10:30", rec.Chat.Time)
	assert.Equal(t, "see you at 8", rec.Chat.Message)
}

func TestDecodeKeepsUnknownLabelsInExtras(t *testing.T) {
	text := "CONTACTS\n1. Name: John Doe | Phone: +444 | Nickname: JD"
	doc := Decode(text)

	require.Len(t, doc.Records, 1)
	rec := doc.Records[0]
	assert.Equal(t, evidence.KindContact, rec.Kind)
	assert.Equal(t, "JD", rec.Extras["nickname"])
}

func TestDecodeDelimiterDetection(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"pipe", "1. Name: Alice | Phone: +111"},
		{"bullet", "1. Name: Alice • Phone: +111"},
		{"semicolon", "1. Name: Alice ; Phone: +111"},
		{"spaced hyphen", "1. Name: Alice - Phone: +111"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := Decode(tt.line)
			require.Len(t, doc.Records, 1)
			rec := doc.Records[0]
			require.NotNil(t, rec.Contact)
			assert.Equal(t, "Alice", rec.Contact.Name)
			assert.Equal(t, "+111", rec.Contact.Phone)
		})
	}
}

func TestDecodeHyphenInDateNotSplit(t *testing.T) {
	doc := Decode("1. Name: Bob | Time: 2024-03-01")

	require.Len(t, doc.Records, 1)
	rec := doc.Records[0]
	require.NotNil(t, rec.Contact)
	assert.Equal(t, "2024-03-01", rec.Contact.Time)
}

func TestDecodeReinfersWhenSectionContradicted(t *testing.T) {
	// 分节头说是联系人，但字段全是媒体文件签名
	text := "CONTACTS\n1. File: photo.jpg | Size: 2.4MB | Path: /DCIM/photo.jpg"
	doc := Decode(text)

	require.Len(t, doc.Records, 1)
	assert.Equal(t, evidence.KindMedia, doc.Records[0].Kind)

	// time 是四种词表共有的字段，带上时间戳也不能坐实分节归属
	text = "CONTACTS\n1. File: photo.jpg | Size: 2.4MB | Path: /DCIM/photo.jpg | Time: 2024-01-01"
	doc = Decode(text)

	require.Len(t, doc.Records, 1)
	rec := doc.Records[0]
	assert.Equal(t, evidence.KindMedia, rec.Kind)
	require.NotNil(t, rec.Media)
	assert.Equal(t, "photo.jpg", rec.Media.File)
	assert.Equal(t, "2024-01-01", rec.Media.Time)
}

func TestDecodeUninformativeEntryKeepsSection(t *testing.T) {
	// 字段签名无信息量时沿用分节类型
	text := "MEDIA FILES\n1. Size: 2.4MB | Time: 2024-01-01"
	doc := Decode(text)

	require.Len(t, doc.Records, 1)
	assert.Equal(t, evidence.KindMedia, doc.Records[0].Kind)
}

func TestDecodeEntryWithoutFieldsIsNarration(t *testing.T) {
	doc := Decode("The meeting ran from 12:30 until 14:00.\n1. Name: Carol | Phone: +555")

	require.Len(t, doc.Records, 1)
	assert.Contains(t, doc.Narration, "12:30")
}

func TestInferKindPriorityOrder(t *testing.T) {
	tests := []struct {
		name string
		line string
		want evidence.Kind
	}{
		{"relevance wins over message", "1. Relevance: 0.91 | Message: wire the money", evidence.KindSearch},
		{"confidence wins over file", "1. Confidence: high | File: report.pdf", evidence.KindAnalysis},
		{"duration wins over from/to", "1. From: +1 | To: +2 | Duration: 00:01:00", evidence.KindCall},
		{"from/to without message is call", "1. From: +1 | To: +2 | Time: 2024-01-01", evidence.KindCall},
		{"from/to with message is chat", "1. From: +1 | To: +2 | Message: hi", evidence.KindChat},
		{"phone with imei is device", "1. Phone: +1 | IMEI: 35920", evidence.KindDevice},
		{"model without phone is device", "1. Model: Pixel 8 | OS: Android 14", evidence.KindDevice},
		{"phone alone is contact", "1. Phone: +1 | Time: 2024-01-01", evidence.KindContact},
		{"no signature is unknown", "1. Foo: bar | Baz: qux", evidence.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := Decode(tt.line)
			require.Len(t, doc.Records, 1)
			assert.Equal(t, tt.want, doc.Records[0].Kind)
		})
	}
}

func TestEncodeGroupsAndNumbersRecords(t *testing.T) {
	chat := evidence.NewRecord(evidence.KindChat)
	chat.Set("app", "WhatsApp")
	chat.Set("from", "+111")
	chat.Set("message", "Hello")

	call := evidence.NewRecord(evidence.KindCall)
	call.Set("from", "+111")
	call.Set("to", "+222")
	call.Set("duration", "00:05:12")
	call.Set("call_type", "outgoing")

	out := Encode(&Document{
		Narration: "Two items relate to the suspect.",
		Records:   []*evidence.Record{call, chat},
	})

	assert.True(t, strings.HasPrefix(out, "Two items relate to the suspect."))
	chatIdx := strings.Index(out, "CHAT RECORDS")
	callIdx := strings.Index(out, "CALL RECORDS")
	require.Greater(t, chatIdx, 0)
	require.Greater(t, callIdx, 0)
	assert.Less(t, chatIdx, callIdx)
	assert.Contains(t, out, "1. App: WhatsApp | From: +111 | Message: Hello")
	assert.Contains(t, out, "1. From: +111 | To: +222 | Duration: 00:05:12 | Type: outgoing")
}

func TestEncodeSanitizesValues(t *testing.T) {
	rec := evidence.NewRecord(evidence.KindChat)
	rec.Set("message", "line one\nwith | pipe")

	out := Encode(&Document{Records: []*evidence.Record{rec}})
	assert.Contains(t, out, "Message: line one with / pipe")
}

func TestRoundTripUnknownRecordsKeepKind(t *testing.T) {
	chat := evidence.NewRecord(evidence.KindChat)
	chat.Set("from", "+111")
	chat.Set("message", "hello")

	// time 与聊天词表重合，无分节保护时会沾染前一分节的类型
	unknown := evidence.NewRecord(evidence.KindUnknown)
	unknown.AddExtra("note", "handwritten ledger page")
	unknown.AddExtra("time", "2024-01-01")

	out := Encode(&Document{Records: []*evidence.Record{chat, unknown}})
	assert.Contains(t, out, "UNRECOGNIZED ENTRIES")

	decoded := Decode(out)
	require.Len(t, decoded.Records, 2)
	assert.Equal(t, evidence.KindChat, decoded.Records[0].Kind)
	assert.Equal(t, evidence.KindUnknown, decoded.Records[1].Kind)
	assert.Equal(t, "handwritten ledger page", decoded.Records[1].Extras["note"])
}

func TestRoundTripPreservesRecords(t *testing.T) {
	chat := evidence.NewRecord(evidence.KindChat)
	chat.Set("app", "Signal")
	chat.Set("from", "+111")
	chat.Set("to", "+222")
	chat.Set("time", "2024-02-02 09:00")
	chat.Set("message", "package arrived")
	chat.AddExtra("thread", "t-42")

	media := evidence.NewRecord(evidence.KindMedia)
	media.Set("file", "ledger.xlsx")
	media.Set("size", "18KB")
	media.Set("file_type", "spreadsheet")
	media.Set("path", "/Documents/ledger.xlsx")

	device := evidence.NewRecord(evidence.KindDevice)
	device.Set("model", "Galaxy S21")
	device.Set("manufacturer", "Samsung")
	device.Set("imei", "359200000000000")

	original := &Document{
		Narration: "Summary of the extraction.",
		Records:   []*evidence.Record{chat, media, device},
	}

	decoded := Decode(Encode(original))
	require.Len(t, decoded.Records, len(original.Records))

	wantByKind := map[evidence.Kind]map[string]string{}
	for _, r := range original.Records {
		wantByKind[r.Kind] = r.CanonicalFields()
	}
	for _, r := range decoded.Records {
		want, ok := wantByKind[r.Kind]
		require.True(t, ok, "unexpected kind %s", r.Kind)
		if diff := cmp.Diff(want, r.CanonicalFields()); diff != "" {
			t.Errorf("record fields mismatch for %s (-want +got):\n%s", r.Kind, diff)
		}
	}
}

func TestRecordIdentityStableAcrossOrigins(t *testing.T) {
	a := evidence.NewRecord(evidence.KindCall)
	a.Set("from", "+111")
	a.Set("to", "+222")
	a.Set("time", "2024-01-01 12:00")
	a.Set("call_type", "outgoing")

	b := evidence.NewRecord(evidence.KindCall)
	b.Set("from", "+111")
	b.Set("to", "+222")
	b.Set("time", "2024-01-01 12:00")
	b.Set("duration", "00:02:00")

	assert.Equal(t, a.Identity(), b.Identity())

	c := evidence.NewRecord(evidence.KindCall)
	c.Set("from", "+111")
	c.Set("to", "+333")
	c.Set("time", "2024-01-01 12:00")
	assert.NotEqual(t, a.Identity(), c.Identity())
}
