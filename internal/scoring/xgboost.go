package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/triplens/service-trip-duration/internal/domain/trip"
)

// XGBoostModel evaluates a gradient boosted tree ensemble saved with XGBoost's
// save_model("model.json"). Only numerical splits of the gbtree booster are supported.
//
// Evaluation follows the reference predictor: features and thresholds are compared in
// float32, leaf values are accumulated in float32 on top of the base margin, and a NaN
// feature follows the node's default direction.
type XGBoostModel struct {
	baseMargin float32
	transform  func(float32) float32
	objective  string
	trees      []xgbTree
}

type xgbTree struct {
	left        []int32
	right       []int32
	splitIndex  []int32
	splitCond   []float32
	defaultLeft []bool
}

type xgbDocument struct {
	Learner struct {
		Attributes        map[string]string `json:"attributes"`
		FeatureNames      []string          `json:"feature_names"`
		LearnerModelParam struct {
			BaseScore  string `json:"base_score"`
			NumFeature string `json:"num_feature"`
			NumClass   string `json:"num_class"`
		} `json:"learner_model_param"`
		Objective struct {
			Name string `json:"name"`
		} `json:"objective"`
		GradientBooster struct {
			Name  string `json:"name"`
			Model struct {
				GbtreeModelParam struct {
					NumParallelTree string `json:"num_parallel_tree"`
				} `json:"gbtree_model_param"`
				IterationIndptr []int             `json:"iteration_indptr"`
				Trees           []xgbTreeDocument `json:"trees"`
			} `json:"model"`
		} `json:"gradient_booster"`
	} `json:"learner"`
}

type xgbTreeDocument struct {
	LeftChildren    []int32   `json:"left_children"`
	RightChildren   []int32   `json:"right_children"`
	SplitIndices    []int32   `json:"split_indices"`
	SplitConditions []float64 `json:"split_conditions"`
	DefaultLeft     flagList  `json:"default_left"`
	SplitType       []int     `json:"split_type"`
}

// flagList accepts both the boolean and the 0/1 encodings XGBoost has used over time.
type flagList []bool

func (f *flagList) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make([]bool, len(raw))
	for i, v := range raw {
		switch x := v.(type) {
		case bool:
			out[i] = x
		case float64:
			out[i] = x != 0
		default:
			return fmt.Errorf("default_left[%d]: unexpected %T", i, v)
		}
	}
	*f = out
	return nil
}

// ParseXGBoost decodes and validates an XGBoost JSON model against the feature schema.
func ParseXGBoost(payload []byte) (*XGBoostModel, error) {
	var doc xgbDocument
	dec := json.NewDecoder(bytes.NewReader(payload))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse model json: %w", err)
	}
	learner := doc.Learner

	if name := learner.GradientBooster.Name; name != "gbtree" {
		return nil, fmt.Errorf("unsupported booster %q", name)
	}
	if nc := learner.LearnerModelParam.NumClass; nc != "" && nc != "0" {
		return nil, fmt.Errorf("multi-class models are not supported (num_class=%s)", nc)
	}
	if nf := learner.LearnerModelParam.NumFeature; nf != "" && nf != strconv.Itoa(trip.NumFeatures) {
		return nil, fmt.Errorf("model expects %s features, service produces %d", nf, trip.NumFeatures)
	}
	if names := learner.FeatureNames; len(names) > 0 {
		if err := checkFeatureNames(names); err != nil {
			return nil, err
		}
	}

	baseScore, err := parseBaseScore(learner.LearnerModelParam.BaseScore)
	if err != nil {
		return nil, err
	}
	margin, transform, err := objectiveLink(learner.Objective.Name, baseScore)
	if err != nil {
		return nil, err
	}

	trees := learner.GradientBooster.Model.Trees
	limit, err := treeLimit(doc, len(trees))
	if err != nil {
		return nil, err
	}

	m := &XGBoostModel{
		baseMargin: margin,
		transform:  transform,
		objective:  learner.Objective.Name,
		trees:      make([]xgbTree, 0, limit),
	}
	for i, td := range trees[:limit] {
		tree, err := buildTree(td)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		m.trees = append(m.trees, tree)
	}
	return m, nil
}

// treeLimit returns how many leading trees take part in prediction. Early-stopped models
// record best_iteration and are served with only the first best_iteration+1 boosting rounds.
func treeLimit(doc xgbDocument, numTrees int) (int, error) {
	raw, ok := doc.Learner.Attributes["best_iteration"]
	if !ok || raw == "" {
		return numTrees, nil
	}
	best, err := strconv.Atoi(raw)
	if err != nil || best < 0 {
		return 0, fmt.Errorf("invalid best_iteration %q", raw)
	}
	rounds := best + 1

	model := doc.Learner.GradientBooster.Model
	var limit int
	if indptr := model.IterationIndptr; len(indptr) > 0 {
		if rounds >= len(indptr) {
			return numTrees, nil
		}
		limit = indptr[rounds]
	} else {
		perRound := 1
		if p := model.GbtreeModelParam.NumParallelTree; p != "" {
			perRound, err = strconv.Atoi(p)
			if err != nil || perRound < 1 {
				return 0, fmt.Errorf("invalid num_parallel_tree %q", p)
			}
		}
		limit = rounds * perRound
	}
	return min(limit, numTrees), nil
}

func checkFeatureNames(names []string) error {
	if len(names) != trip.NumFeatures {
		return fmt.Errorf("model has %d feature names, service produces %d", len(names), trip.NumFeatures)
	}
	for i, name := range names {
		if name != trip.FeatureColumns[i] {
			return fmt.Errorf("feature %d: model expects %q, service produces %q", i, name, trip.FeatureColumns[i])
		}
	}
	return nil
}

// parseBaseScore handles both "5E-1" and the bracketed vector form "[5E-1]".
func parseBaseScore(raw string) (float32, error) {
	raw = strings.TrimSpace(strings.Trim(raw, "[]"))
	if raw == "" {
		return 0.5, nil
	}
	v, err := strconv.ParseFloat(raw, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid base_score %q: %w", raw, err)
	}
	return float32(v), nil
}

func objectiveLink(objective string, baseScore float32) (float32, func(float32) float32, error) {
	switch objective {
	case "", "reg:squarederror", "reg:linear", "reg:absoluteerror", "reg:pseudohubererror",
		"reg:squaredlogerror", "reg:quantileerror":
		return baseScore, identity, nil
	case "reg:logistic", "binary:logistic":
		if baseScore <= 0 || baseScore >= 1 {
			return 0, nil, fmt.Errorf("base_score %v out of range for %s", baseScore, objective)
		}
		return float32(-math.Log(1/float64(baseScore) - 1)), sigmoid, nil
	case "count:poisson", "reg:gamma", "reg:tweedie":
		if baseScore <= 0 {
			return 0, nil, fmt.Errorf("base_score %v out of range for %s", baseScore, objective)
		}
		return float32(math.Log(float64(baseScore))), exp32, nil
	default:
		return 0, nil, fmt.Errorf("unsupported objective %q", objective)
	}
}

func identity(x float32) float32 { return x }

func sigmoid(x float32) float32 { return float32(1 / (1 + math.Exp(-float64(x)))) }

func exp32(x float32) float32 { return float32(math.Exp(float64(x))) }

func buildTree(td xgbTreeDocument) (xgbTree, error) {
	n := len(td.LeftChildren)
	if n == 0 {
		return xgbTree{}, errors.New("empty tree")
	}
	if len(td.RightChildren) != n || len(td.SplitIndices) != n ||
		len(td.SplitConditions) != n || len(td.DefaultLeft) != n {
		return xgbTree{}, errors.New("node arrays have mismatched lengths")
	}

	tree := xgbTree{
		left:        td.LeftChildren,
		right:       td.RightChildren,
		splitIndex:  td.SplitIndices,
		splitCond:   make([]float32, n),
		defaultLeft: td.DefaultLeft,
	}
	for i := 0; i < n; i++ {
		tree.splitCond[i] = float32(td.SplitConditions[i])
		if i < len(td.SplitType) && td.SplitType[i] != 0 {
			return xgbTree{}, fmt.Errorf("node %d: categorical splits are not supported", i)
		}
		if tree.left[i] == -1 {
			continue
		}
		if tree.left[i] <= int32(i) || tree.right[i] <= int32(i) || int(tree.left[i]) >= n || int(tree.right[i]) >= n {
			return xgbTree{}, fmt.Errorf("node %d: invalid children %d/%d", i, tree.left[i], tree.right[i])
		}
		if tree.splitIndex[i] < 0 || int(tree.splitIndex[i]) >= trip.NumFeatures {
			return xgbTree{}, fmt.Errorf("node %d: split feature %d out of range", i, tree.splitIndex[i])
		}
	}
	return tree, nil
}

func (t *xgbTree) leaf(x *[trip.NumFeatures]float32, missing *[trip.NumFeatures]bool) float32 {
	node := int32(0)
	for t.left[node] != -1 {
		f := t.splitIndex[node]
		switch {
		case missing[f]:
			if t.defaultLeft[node] {
				node = t.left[node]
			} else {
				node = t.right[node]
			}
		case x[f] < t.splitCond[node]:
			node = t.left[node]
		default:
			node = t.right[node]
		}
	}
	return t.splitCond[node]
}

// NumTrees returns the number of trees used for prediction.
func (m *XGBoostModel) NumTrees() int { return len(m.trees) }

// Objective returns the training objective recorded in the model.
func (m *XGBoostModel) Objective() string { return m.objective }

func (m *XGBoostModel) predict(v trip.FeatureVector) float64 {
	var (
		x       [trip.NumFeatures]float32
		missing [trip.NumFeatures]bool
	)
	for i, val := range v.Values() {
		missing[i] = math.IsNaN(val)
		x[i] = float32(val)
	}

	sum := m.baseMargin
	for i := range m.trees {
		sum += m.trees[i].leaf(&x, &missing)
	}
	return float64(m.transform(sum))
}

func (m *XGBoostModel) Score(_ context.Context, v trip.FeatureVector) (float64, error) {
	return m.predict(v), nil
}

func (m *XGBoostModel) ScoreBatch(ctx context.Context, vs []trip.FeatureVector) ([]float64, error) {
	return scoreEach(ctx, m, vs)
}
