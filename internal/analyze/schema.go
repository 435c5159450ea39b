package analyze

// invariantSchema declares the extensional facts this package asserts
// (node/1, func_edge/2, any_edge/2) and the rules that derive violations
// from them. reaches/has_cycle mirrors the transitive-closure pattern
// (edge/path) the teacher's own engine tests exercise; dangling uses the
// same "!predicate(...)" stratified negation the teacher's legislator
// rules use for permitted/blocked checks.
const invariantSchema = `
Decl node(ID) bound [/string].
Decl func_edge(Src, Dst) bound [/string, /string].
Decl any_edge(Src, Dst) bound [/string, /string].

Decl reaches(Src, Dst) bound [/string, /string].
reaches(X, Y) :- func_edge(X, Y).
reaches(X, Z) :- func_edge(X, Y), reaches(Y, Z).

Decl has_cycle(X) bound [/string].
has_cycle(X) :- reaches(X, X).

Decl dangling(Src, Dst) bound [/string, /string].
dangling(Src, Dst) :- any_edge(Src, Dst), !node(Src).
dangling(Src, Dst) :- any_edge(Src, Dst), !node(Dst).
`
