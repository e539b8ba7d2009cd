package demo

import (
	"secure-agent-cli/internal/model"
)

// Seed is the content the demo service starts with.
type Seed struct {
	Users     []SeedUser
	Documents []SeedDocument
	// Grants lists who may view each folder. A subject is either
	// "group:<name>" (every member) or a user id.
	Grants []Grant
}

type SeedUser struct {
	model.Identity
}

type SeedDocument struct {
	model.Document
	Text string
}

type Grant struct {
	Folder  string
	Subject string
}

// DefaultSeed is the four-person, seven-document company used by the demo.
func DefaultSeed() Seed {
	return Seed{
		Users: []SeedUser{
			{model.Identity{ID: "user:seigen", Name: "Seigen", Role: "CEO", Groups: []string{"engineering", "sales"}}},
			{model.Identity{ID: "user:alan", Name: "Alan", Role: "EM", Groups: []string{"engineering"}}},
			{model.Identity{ID: "user:tsukada", Name: "Tsukada", Role: "CRO", Groups: []string{"sales"}}},
			{model.Identity{ID: "user:tsuki", Name: "Tsuki", Role: "Backend", Groups: []string{"engineering"}}},
		},
		Documents: []SeedDocument{
			{
				Document: model.Document{ID: "1", Title: "Engineering Roadmap 2025", Folder: "engineering", Category: "Engineering", Lang: "en"},
				Text:     "The Engineering Roadmap 2025: We will focus on migrating to a microservices architecture and implementing AI-driven testing. Key milestone: Q3 release of the new API.",
			},
			{
				Document: model.Document{ID: "2", Title: "Sales Targets 2025", Folder: "sales", Category: "Sales", Lang: "en"},
				Text:     "Sales Targets 2025: The goal is to reach $10M ARR. Focus on the enterprise sector in the APAC region. Commission structure has been updated.",
			},
			{
				Document: model.Document{ID: "3", Title: "Holiday Notice", Folder: "general", Category: "General", Lang: "en"},
				Text:     "Public Notice: The office will be closed on December 25th for the holidays. Happy Holidays to everyone!",
			},
			{
				Document: model.Document{ID: "4", Title: "Project Alpha Specs", Folder: "engineering", Category: "Engineering", Lang: "ja"},
				Text:     "プロジェクトAlphaの技術仕様書: このプロジェクトでは、次世代の認証基盤を構築します。OAuth2.0とOIDCに完全準拠し、生体認証もサポートする予定です。リリースは来年の第2四半期を予定しています。",
			},
			{
				Document: model.Document{ID: "5", Title: "Q4 Sales Report JP", Folder: "sales", Category: "Sales", Lang: "ja"},
				Text:     "2024年度第4四半期営業報告: 日本市場における売上は前年比120%増を達成しました。特に金融業界向けの導入が進んでいます。来期は製造業へのアプローチを強化します。",
			},
			{
				Document: model.Document{ID: "6", Title: "Remote Work Policy", Folder: "general", Category: "General", Lang: "ja"},
				Text:     "社内規定の改定について: 2025年1月1日より、リモートワーク規定が一部変更されます。週2回の出社が推奨されますが、介護や育児などの事情がある場合はフルリモートも可能です。",
			},
			{
				Document: model.Document{ID: "7", Title: "Merger Strategy", Folder: "executive", Category: "Executive", Lang: "en"},
				Text:     "Confidential Merger Strategy: We are in early talks to acquire Competitor X. This information is strictly confidential and limited to C-level executives.",
			},
		},
		Grants: []Grant{
			{Folder: "engineering", Subject: "group:engineering"},
			{Folder: "sales", Subject: "group:sales"},
			{Folder: "general", Subject: "group:engineering"},
			{Folder: "general", Subject: "group:sales"},
			{Folder: "executive", Subject: "user:seigen"},
		},
	}
}
