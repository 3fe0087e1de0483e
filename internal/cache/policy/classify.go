package policy

import (
	"fmt"
	"strings"

	"github.com/datatier/cachesim/internal/workload"
)

// Classifier assigns an access to a file class used by class-aware policies.
type Classifier interface {
	Class(access workload.Access) string
}

// ConstantClassifier places every access in one class.
type ConstantClassifier struct {
	Const string
}

// Class implements Classifier.
func (c ConstantClassifier) Class(workload.Access) string { return c.Const }

// DatasetClassifier classes by the top-most directory of the file path,
// which conventionally names the dataset.
type DatasetClassifier struct{}

// Class implements Classifier.
func (DatasetClassifier) Class(access workload.Access) string {
	trimmed := strings.TrimPrefix(access.File, "/")

	top, _, found := strings.Cut(trimmed, "/")
	if !found {
		return ""
	}

	return top
}

// DirnameClassifier classes by the immediate parent directory of the file.
type DirnameClassifier struct{}

// Class implements Classifier.
func (DirnameClassifier) Class(access workload.Access) string {
	slash := strings.LastIndexByte(access.File, '/')
	if slash < 0 {
		return "."
	}

	return access.File[:slash]
}

// CombineClassifiers joins several classifiers into one composite class.
type CombineClassifiers []Classifier

// Class implements Classifier.
func (c CombineClassifiers) Class(access workload.Access) string {
	parts := make([]string, len(c))
	for i, classifier := range c {
		parts[i] = classifier.Class(access)
	}

	return strings.Join(parts, "\x1f")
}

// ParseClassifier resolves a classifier expression: one of "constant",
// "dataset" or "dirname", or several of them combined with '&'.
func ParseClassifier(expr string) (Classifier, error) {
	names := strings.Split(expr, "&")

	classifiers := make(CombineClassifiers, 0, len(names))

	for _, name := range names {
		switch strings.TrimSpace(name) {
		case "constant":
			classifiers = append(classifiers, ConstantClassifier{})
		case "dataset":
			classifiers = append(classifiers, DatasetClassifier{})
		case "dirname":
			classifiers = append(classifiers, DirnameClassifier{})
		default:
			return nil, fmt.Errorf("unknown classifier %q", name)
		}
	}

	if len(classifiers) == 1 {
		return classifiers[0], nil
	}

	return classifiers, nil
}
