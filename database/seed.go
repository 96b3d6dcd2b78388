package database

import (
	"errors"
	"log"

	"github.com/xuebang/xuebang-api/model"
	"gorm.io/gorm"
)

// allFeaturesPermission grants every feature without limits (annual tier)
func allFeaturesPermission() model.Permission {
	return model.Permission{Features: model.AllFeatures}
}

// seedTiers is the reference tier catalog. Tiers are inserted once by code;
// existing rows are never overwritten so purchased definitions stay immutable.
func seedTiers() []model.MembershipTier {
	return []model.MembershipTier{
		{
			Code:         model.FreeTierCode,
			Name:         "免费版",
			Level:        0,
			Price:        0,
			DurationDays: 0,
			SortOrder:    0,
			Permission: model.Permission{
				Features: []model.FeatureCode{
					model.FeatureAIAsk,
					model.FeatureProgrammingHelp,
					model.FeatureCodeExplain,
				},
				Limits: map[model.FeatureCode]model.WindowedLimit{
					model.FeatureAIAsk:           {Limit: 10, Window: model.WindowDaily},
					model.FeatureProgrammingHelp: {Limit: 3, Window: model.WindowDaily},
					model.FeatureCodeExplain:     {Limit: 3, Window: model.WindowDaily},
				},
			},
		},
		{
			Code:          "monthly",
			Name:          "月度会员",
			Level:         1,
			Price:         29.9,
			OriginalPrice: 39.9,
			DurationDays:  30,
			SortOrder:     1,
			Permission: model.Permission{
				Features: []model.FeatureCode{
					model.FeatureAIAsk,
					model.FeatureProgrammingHelp,
					model.FeatureCodeReview,
					model.FeatureCodeExplain,
					model.FeatureDebugHelp,
					model.FeatureGenerateQuestion,
					model.FeatureGenerateLecture,
				},
				Limits: map[model.FeatureCode]model.WindowedLimit{
					model.FeatureAIAsk:            {Limit: 200, Window: model.WindowWeekly},
					model.FeatureProgrammingHelp:  {Limit: 50, Window: model.WindowWeekly},
					model.FeatureCodeReview:       {Limit: 30, Window: model.WindowWeekly},
					model.FeatureCodeExplain:      {Limit: 50, Window: model.WindowWeekly},
					model.FeatureDebugHelp:        {Limit: 50, Window: model.WindowWeekly},
					model.FeatureGenerateQuestion: {Limit: 20, Window: model.WindowWeekly},
					model.FeatureGenerateLecture:  {Limit: 10, Window: model.WindowWeekly},
				},
			},
		},
		{
			Code:          "quarterly",
			Name:          "季度会员",
			Level:         2,
			Price:         79.9,
			OriginalPrice: 119.7,
			DurationDays:  90,
			SortOrder:     2,
			Permission: model.Permission{
				Features: model.AllFeatures,
				Limits: map[model.FeatureCode]model.WindowedLimit{
					model.FeatureVideoSummary:    {Limit: 60, Window: model.WindowMonthly},
					model.FeatureVideoToLecture:  {Limit: 30, Window: model.WindowMonthly},
					model.FeatureGradeAssignment: {Limit: 100, Window: model.WindowMonthly},
				},
			},
		},
		{
			Code:          "annual",
			Name:          "年度会员",
			Level:         3,
			Price:         299,
			OriginalPrice: 358.8,
			DurationDays:  365,
			SortOrder:     3,
			Permission:    allFeaturesPermission(),
		},
		{
			Code:          "early_bird_1",
			Name:          "早鸟特惠·第一批",
			Level:         3,
			Price:         99,
			OriginalPrice: 299,
			DurationDays:  365,
			SortOrder:     4,
			IsLimited:     true,
			TotalQuota:    100,
			MinOrder:      1,
			MaxOrder:      100,
			IsEarlyBird:   true,
			EarlyBirdTier: 1,
			Permission:    allFeaturesPermission(),
		},
		{
			Code:          "early_bird_2",
			Name:          "早鸟特惠·第二批",
			Level:         3,
			Price:         159,
			OriginalPrice: 299,
			DurationDays:  365,
			SortOrder:     5,
			IsLimited:     true,
			TotalQuota:    200,
			MinOrder:      101,
			MaxOrder:      300,
			IsEarlyBird:   true,
			EarlyBirdTier: 2,
			Permission:    allFeaturesPermission(),
		},
		{
			Code:          "early_bird_3",
			Name:          "早鸟特惠·第三批",
			Level:         3,
			Price:         199,
			OriginalPrice: 299,
			DurationDays:  365,
			SortOrder:     6,
			IsLimited:     true,
			TotalQuota:    300,
			MinOrder:      301,
			MaxOrder:      600,
			IsEarlyBird:   true,
			EarlyBirdTier: 3,
			Permission:    allFeaturesPermission(),
		},
	}
}

// SeedTiers inserts any missing catalog tiers. Existing tiers are left
// untouched, including their sold counts.
func (s *GORMStore) SeedTiers() error {
	for _, tier := range seedTiers() {
		var existing model.MembershipTier
		err := s.db.Where("code = ?", tier.Code).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := s.db.Create(&tier).Error; err != nil {
			return err
		}
		log.Printf("seeded membership tier %s", tier.Code)
	}
	return nil
}
