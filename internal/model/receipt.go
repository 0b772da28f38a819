// Package model はドメインモデルを定義する。
package model

// ReceiptItem はレシートの1明細行を表す。
// IDは抽出時に採番されるランダムな不透明識別子。
type ReceiptItem struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int    `json:"price"` // 最小通貨単位（セント）
	Taxed bool   `json:"taxed"`
}

// ReceiptExtraction はレシート画像からの構造化抽出結果を表す。
// Itemsの順序はプロバイダーが返した順序をそのまま保持する。
type ReceiptExtraction struct {
	Items []ReceiptItem `json:"items"`
	Tax   int           `json:"tax"` // 税額（セント）。レシートに記載がない場合は0
	Tip   int           `json:"tip"` // チップ額（セント）。レシートに記載がない場合は0
}
