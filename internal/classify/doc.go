// Package classify assigns bookmark records to group labels.
//
// Strategies are independent and composable:
//
//   - RuleClassifier: ordered keyword table, first matching rule wins
//   - DomainClassifier: curated domain sets, exact or subdomain match
//   - RootDomainDetector: routes bare homepages into a pinned group
//   - SourceGroup: keeps the group a record had in its snapshot
//
// Per-record strategies implement Labeler and report whether they have an
// opinion. Whole-list strategies implement Classifier. Composite combines
// them with a fixed precedence: overrides (root, then domain sets) beat the
// base classifier, whatever the base is.
package classify
