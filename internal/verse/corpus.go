package verse

// EmbeddedTranslation is the translation tag of the embedded sample corpus.
const EmbeddedTranslation = "KJV"

// EmbeddedCorpus returns a fresh copy of the embedded KJV sample corpus.
// It is intentionally small: full deployments load a corpus file or point at
// a PostgreSQL store instead.
func EmbeddedCorpus() []Verse {
	verses := make([]Verse, len(embeddedVerses))
	copy(verses, embeddedVerses)
	return verses
}

var embeddedVerses = []Verse{
	{ID: "43003016", Book: "John", Chapter: 3, VerseNum: 16, Translation: EmbeddedTranslation,
		Text: "For God so loved the world, that he gave his only begotten Son, that whosoever believeth in him should not perish, but have everlasting life."},
	{ID: "40022037", Book: "Matthew", Chapter: 22, VerseNum: 37, Translation: EmbeddedTranslation,
		Text: "Jesus said unto him, Thou shalt love the Lord thy God with all thy heart, and with all thy soul, and with all thy mind."},
	{ID: "40022039", Book: "Matthew", Chapter: 22, VerseNum: 39, Translation: EmbeddedTranslation,
		Text: "And the second is like unto it, Thou shalt love thy neighbour as thyself."},
	{ID: "46013013", Book: "1 Corinthians", Chapter: 13, VerseNum: 13, Translation: EmbeddedTranslation,
		Text: "And now abideth faith, hope, charity, these three; but the greatest of these is charity."},
	{ID: "20003005", Book: "Proverbs", Chapter: 3, VerseNum: 5, Translation: EmbeddedTranslation,
		Text: "Trust in the Lord with all thine heart; and lean not unto thine own understanding."},
	{ID: "50004013", Book: "Philippians", Chapter: 4, VerseNum: 13, Translation: EmbeddedTranslation,
		Text: "I can do all things through Christ which strengtheneth me."},
	{ID: "19046010", Book: "Psalm", Chapter: 46, VerseNum: 10, Translation: EmbeddedTranslation,
		Text: "Be still, and know that I am God: I will be exalted among the heathen, I will be exalted in the earth."},
	{ID: "19023001", Book: "Psalm", Chapter: 23, VerseNum: 1, Translation: EmbeddedTranslation,
		Text: "The Lord is my shepherd; I shall not want."},
	{ID: "40018020", Book: "Matthew", Chapter: 18, VerseNum: 20, Translation: EmbeddedTranslation,
		Text: "For where two or three are gathered together in my name, there am I in the midst of them."},
	{ID: "40007007", Book: "Matthew", Chapter: 7, VerseNum: 7, Translation: EmbeddedTranslation,
		Text: "Ask, and it shall be given you; seek, and ye shall find; knock, and it shall be opened unto you."},
	{ID: "40011028", Book: "Matthew", Chapter: 11, VerseNum: 28, Translation: EmbeddedTranslation,
		Text: "Come unto me, all ye that labour and are heavy laden, and I will give you rest."},
	{ID: "45008028", Book: "Romans", Chapter: 8, VerseNum: 28, Translation: EmbeddedTranslation,
		Text: "And we know that all things work together for good to them that love God, to them who are the called according to his purpose."},
	{ID: "23040031", Book: "Isaiah", Chapter: 40, VerseNum: 31, Translation: EmbeddedTranslation,
		Text: "But they that wait upon the Lord shall renew their strength; they shall mount up with wings as eagles; they shall run, and not be weary; and they shall walk, and not faint."},
	{ID: "19119105", Book: "Psalm", Chapter: 119, VerseNum: 105, Translation: EmbeddedTranslation,
		Text: "Thy word is a lamp unto my feet, and a light unto my path."},
	{ID: "24029011", Book: "Jeremiah", Chapter: 29, VerseNum: 11, Translation: EmbeddedTranslation,
		Text: "For I know the thoughts that I think toward you, saith the Lord, thoughts of peace, and not of evil, to give you an expected end."},
	{ID: "43014006", Book: "John", Chapter: 14, VerseNum: 6, Translation: EmbeddedTranslation,
		Text: "Jesus saith unto him, I am the way, the truth, and the life: no man cometh unto the Father, but by me."},
	{ID: "49002008", Book: "Ephesians", Chapter: 2, VerseNum: 8, Translation: EmbeddedTranslation,
		Text: "For by grace are ye saved through faith; and that not of yourselves: it is the gift of God:"},
	{ID: "45010009", Book: "Romans", Chapter: 10, VerseNum: 9, Translation: EmbeddedTranslation,
		Text: "That if thou shalt confess with thy mouth the Lord Jesus, and shalt believe in thine heart that God hath raised him from the dead, thou shalt be saved."},
	{ID: "45003023", Book: "Romans", Chapter: 3, VerseNum: 23, Translation: EmbeddedTranslation,
		Text: "For all have sinned, and come short of the glory of God;"},
	{ID: "62001009", Book: "1 John", Chapter: 1, VerseNum: 9, Translation: EmbeddedTranslation,
		Text: "If we confess our sins, he is faithful and just to forgive us our sins, and to cleanse us from all unrighteousness."},
	{ID: "43001012", Book: "John", Chapter: 1, VerseNum: 12, Translation: EmbeddedTranslation,
		Text: "But as many as received him, to them gave he power to become the sons of God, even to them that believe on his name:"},
	{ID: "58013005", Book: "Hebrews", Chapter: 13, VerseNum: 5, Translation: EmbeddedTranslation,
		Text: "Let your conversation be without covetousness; and be content with such things as ye have: for he hath said, I will never leave thee, nor forsake thee."},
	{ID: "50004019", Book: "Philippians", Chapter: 4, VerseNum: 19, Translation: EmbeddedTranslation,
		Text: "But my God shall supply all your need according to his riches in glory by Christ Jesus."},
	{ID: "47012009", Book: "2 Corinthians", Chapter: 12, VerseNum: 9, Translation: EmbeddedTranslation,
		Text: "And he said unto me, My grace is sufficient for thee: for my strength is made perfect in weakness. Most gladly therefore will I rather glory in my infirmities, that the power of Christ may rest upon me."},
	{ID: "59001005", Book: "James", Chapter: 1, VerseNum: 5, Translation: EmbeddedTranslation,
		Text: "If any of you lack wisdom, let him ask of God, that giveth to all men liberally, and upbraideth not; and it shall be given him."},
}
