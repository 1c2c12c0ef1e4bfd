package nodes

import (
	"context"
	"strings"
)

const categoryTagger = "tagger"

type tagSelector func(*Tags) []string

func taggerNode(name, displayName, function string, imageType string, withThreshold bool, sel tagSelector) Definition {
	inputs := Inputs{Required: []InputSpec{{Name: "image", Type: imageType}}}
	if imageType == TypeString {
		inputs.Required[0].Default = "/path/to/image.jpg"
	}
	if withThreshold {
		inputs.Optional = []InputSpec{
			{Name: "threshold", Type: TypeFloat, Default: 0.4, Min: bound(0), Max: bound(1), Step: bound(0.01)},
			{Name: "replace", Type: TypeBool, Default: false},
		}
	}
	return Definition{
		Name:        name,
		DisplayName: displayName,
		Function:    function,
		Category:    categoryTagger,
		Inputs:      inputs,
		ReturnTypes: []string{TypeString},
		Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
			tagger, err := env.tagger()
			if err != nil {
				return Output{}, err
			}
			img, err := env.image(ctx, args.Any("image"))
			if err != nil {
				return Output{}, err
			}
			threshold := 0.4
			if withThreshold {
				threshold = args.Float("threshold")
			}
			tags, err := tagger.Tag(ctx, img, threshold, args.Bool("replace"))
			if err != nil {
				return Output{}, err
			}
			return out(strings.Join(sel(tags), ", ")), nil
		},
	}
}

func TaggerNodes() []Definition {
	rating := func(t *Tags) []string { return []string{t.Rating} }
	general := func(t *Tags) []string { return t.General }
	characters := func(t *Tags) []string { return t.Characters }
	all := func(t *Tags) []string {
		list := append([]string{t.Rating}, t.General...)
		return append(list, t.Characters...)
	}

	return []Definition{
		taggerNode("GetRatingNode", "Get Rating Class", "get_rating_class", TypeImage, false, rating),
		taggerNode("GetRatingFromTextNode", "Get Rating Class From Text", "get_rating_class", TypeString, false, rating),
		taggerNode("GetTagsAboveThresholdNode", "Get Tags Above Threshold", "get_tags_above_threshold", TypeImage, true, general),
		taggerNode("GetTagsAboveThresholdFromTextNode", "Get Tags Above Threshold From Text", "get_tags_above_threshold", TypeString, true, general),
		taggerNode("GetCharactersAboveThresholdNode", "Get Chars Above Threshold", "get_tags_above_threshold", TypeImage, true, characters),
		taggerNode("GetCharactersAboveThresholdFromTextNode", "Get Chars Above Threshold From Text", "get_tags_above_threshold", TypeString, true, characters),
		taggerNode("GetAllTagsAboveThresholdNode", "Get All Tags Above Threshold", "get_tags", TypeImage, true, all),
	}
}
